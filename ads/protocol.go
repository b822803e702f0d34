package ads

import "encoding/binary"

// AMS/TCP command IDs (the 6-byte header that wraps every frame on the
// wire, one layer above the AMS header).
const (
	tcpCmdADS            uint16 = 0x0000
	tcpCmdPortClose      uint16 = 0x0001
	tcpCmdPortConnect    uint16 = 0x1000
	tcpCmdRouterNote     uint16 = 0x1001
	tcpCmdGetLocalNetID  uint16 = 0x1002
)

// ADS command IDs (carried in the AMS header's CommandId field).
const (
	CmdReadDeviceInfo          uint16 = 0x0001
	CmdRead                    uint16 = 0x0002
	CmdWrite                   uint16 = 0x0003
	CmdReadState               uint16 = 0x0004
	CmdWriteControl            uint16 = 0x0005
	CmdAddDeviceNotification   uint16 = 0x0006
	CmdDeleteDeviceNotification uint16 = 0x0007
	CmdDeviceNotification      uint16 = 0x0008
	CmdReadWrite               uint16 = 0x0009
)

// AMS header state flags.
const (
	StateResponse       uint16 = 0x0001
	StateNoReturn       uint16 = 0x0002
	StateAdsCommand     uint16 = 0x0004
	StateSysCommand     uint16 = 0x0008
	StateHighPriority   uint16 = 0x0010
	StateTimeStampAdded uint16 = 0x0020
	StateUDP            uint16 = 0x0040
	StateInitCmd        uint16 = 0x0080
	StateBroadcast      uint16 = 0x8000
)

// Index groups used for symbol/type/value access.
const (
	IndexGroupSymbolTable          uint32 = 0xF000
	IndexGroupSymbolName           uint32 = 0xF001
	IndexGroupSymbolValue          uint32 = 0xF002
	IndexGroupSymbolHandleByName   uint32 = 0xF003
	IndexGroupSymbolValueByName    uint32 = 0xF004
	IndexGroupSymbolValueByHandle  uint32 = 0xF005
	IndexGroupSymbolReleaseHandle  uint32 = 0xF006
	IndexGroupSymbolInfoByName     uint32 = 0xF007
	IndexGroupSymbolVersion        uint32 = 0xF008
	IndexGroupSymbolInfoByNameEx   uint32 = 0xF009
	IndexGroupDataTypeInfoByNameEx uint32 = 0xF00A
	IndexGroupSymbolUpload         uint32 = 0xF00B
	IndexGroupSymbolUploadInfo     uint32 = 0xF00C
	IndexGroupDataTypeUpload       uint32 = 0xF00E
	IndexGroupSymbolUploadInfo2    uint32 = 0xF00F
	// Sum commands batch N reads/writes/handle operations into a single
	// ReadWrite round trip. Added here: the teacher referenced a
	// SumUpRead-style constant without ever defining it.
	IndexGroupSumCommandRead      uint32 = 0xF080
	IndexGroupSumCommandWrite     uint32 = 0xF081
	IndexGroupSumCommandReadWrite uint32 = 0xF082
)

// Well-known ADS ports.
const (
	PortLogger        uint16 = 100
	PortEventLog      uint16 = 110
	PortIO            uint16 = 300
	PortNC            uint16 = 500
	PortPLC1          uint16 = 801
	PortPLC2          uint16 = 811
	PortTC3PLC1       uint16 = 851
	PortTC3PLC2       uint16 = 852
	PortCamshaft      uint16 = 900
	PortSystemService uint16 = 10000
)

const (
	tcpHeaderLen = 6
	amsHeaderLen = 32
)

// amsHeader is the 32-byte AMS routing header that precedes every ADS
// command's payload.
type amsHeader struct {
	TargetNetId AmsNetId
	TargetPort  uint16
	SourceNetId AmsNetId
	SourcePort  uint16
	CommandId   uint16
	StateFlags  uint16
	DataLength  uint32
	ErrorCode   uint32
	InvokeId    uint32
}

func encodeAMSHeader(h amsHeader) []byte {
	buf := make([]byte, amsHeaderLen)
	copy(buf[0:6], h.TargetNetId[:])
	binary.LittleEndian.PutUint16(buf[6:8], h.TargetPort)
	copy(buf[8:14], h.SourceNetId[:])
	binary.LittleEndian.PutUint16(buf[14:16], h.SourcePort)
	binary.LittleEndian.PutUint16(buf[16:18], h.CommandId)
	binary.LittleEndian.PutUint16(buf[18:20], h.StateFlags)
	binary.LittleEndian.PutUint32(buf[20:24], h.DataLength)
	binary.LittleEndian.PutUint32(buf[24:28], h.ErrorCode)
	binary.LittleEndian.PutUint32(buf[28:32], h.InvokeId)
	return buf
}

func decodeAMSHeader(buf []byte) amsHeader {
	var h amsHeader
	copy(h.TargetNetId[:], buf[0:6])
	h.TargetPort = binary.LittleEndian.Uint16(buf[6:8])
	copy(h.SourceNetId[:], buf[8:14])
	h.SourcePort = binary.LittleEndian.Uint16(buf[14:16])
	h.CommandId = binary.LittleEndian.Uint16(buf[16:18])
	h.StateFlags = binary.LittleEndian.Uint16(buf[18:20])
	h.DataLength = binary.LittleEndian.Uint32(buf[20:24])
	h.ErrorCode = binary.LittleEndian.Uint32(buf[24:28])
	h.InvokeId = binary.LittleEndian.Uint32(buf[28:32])
	return h
}

// hasState reports whether all bits of flag are set in the header's state.
func hasState(h amsHeader, flag uint16) bool {
	return h.StateFlags&flag == flag
}

// buildTCPFrame wraps an AMS/TCP-level command (no AMS header, e.g. port
// register/close) with its 6-byte header.
func buildTCPFrame(command uint16, payload []byte) []byte {
	buf := make([]byte, tcpHeaderLen+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], command)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(len(payload)))
	copy(buf[6:], payload)
	return buf
}

// buildADSFrame wraps an AMS header + ADS payload with the AMS/TCP header.
func buildADSFrame(h amsHeader, payload []byte) []byte {
	h.DataLength = uint32(len(payload))
	body := make([]byte, amsHeaderLen+len(payload))
	copy(body, encodeAMSHeader(h))
	copy(body[amsHeaderLen:], payload)
	return buildTCPFrame(tcpCmdADS, body)
}

// tcpFrame is one fully-received AMS/TCP frame handed up by the frame
// reader.
type tcpFrame struct {
	Command uint16
	Payload []byte
}

// filetimeToUnixMillis converts a Windows FILETIME (100ns ticks since
// 1601-01-01) to Unix epoch milliseconds.
func filetimeToUnixMillis(filetime uint64) int64 {
	const epochDiffMillis = 11644473600000
	return int64(filetime/10000) - epochDiffMillis
}

// unixMillisToFiletime is the inverse of filetimeToUnixMillis.
func unixMillisToFiletime(unixMillis int64) uint64 {
	const epochDiffMillis = 11644473600000
	return uint64(unixMillis+epochDiffMillis) * 10000
}
