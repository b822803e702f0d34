package ads

import "fmt"

// TransportError indicates a failure below the AMS routing layer: a
// socket error, a closed connection, or a request that was never
// answered in time. Code is always the synthetic -1 spec.md assigns to
// transport-level problems.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("transport error: %s", e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Code returns the synthetic -1 code shared by every transport-level error.
func (e *TransportError) Code() int { return -1 }

// errTimeout returns the TransportError delivered when a request's deadline
// fires before a matching response arrives.
func errTimeout() error {
	return &TransportError{Message: "Timeout"}
}

// AmsError indicates a non-zero errorCode in the AMS routing header:
// the command never reached the target (wrong port, unknown route, …).
type AmsError struct {
	Code uint32
}

func (e *AmsError) Error() string {
	return fmt.Sprintf("AMS error 0x%04X: %s", e.Code, errorName(e.Code))
}

// AdsError indicates a non-zero errorCode embedded in the ADS command
// payload: the target received the command and refused it.
type AdsError struct {
	Code uint32
}

func (e *AdsError) Error() string {
	return fmt.Sprintf("ADS error 0x%04X: %s", e.Code, errorName(e.Code))
}

// Common ADS/AMS error codes, passed through from the target verbatim.
const (
	ErrNoError               uint32 = 0x0000
	ErrInternal              uint32 = 0x0001
	ErrNoRuntime             uint32 = 0x0002
	ErrAllocLockedMem        uint32 = 0x0003
	ErrInsertMailbox         uint32 = 0x0004
	ErrWrongHMsg             uint32 = 0x0005
	ErrTargetPortNotFound    uint32 = 0x0006
	ErrTargetMachineNotFound uint32 = 0x0007
	ErrUnknownCmdId          uint32 = 0x0008
	ErrBadTaskId             uint32 = 0x0009
	ErrNoIO                  uint32 = 0x000A
	ErrUnknownAmsCmd         uint32 = 0x000B
	ErrWin32Error            uint32 = 0x000C
	ErrPortNotConnected      uint32 = 0x000D
	ErrInvalidAmsLength      uint32 = 0x000E
	ErrInvalidAmsNetId       uint32 = 0x000F
	ErrLowInstLevel          uint32 = 0x0010
	ErrNoDebugInfo           uint32 = 0x0011
	ErrPortDisabled          uint32 = 0x0012
	ErrPortAlreadyConnected  uint32 = 0x0013
	ErrAmsSync               uint32 = 0x0014
	ErrAmsSyncSendError      uint32 = 0x0015
	ErrAmsNoSync             uint32 = 0x0016
	ErrNoIndexMap            uint32 = 0x0017
	ErrInvalidAmsPort        uint32 = 0x0018
	ErrNoMemory              uint32 = 0x0019
	ErrTcpSend               uint32 = 0x001A
	ErrHostUnreachable       uint32 = 0x001B
	ErrInvalidAmsFragment    uint32 = 0x001C
	ErrTlsSend               uint32 = 0x001D
	ErrAccessDenied          uint32 = 0x001E

	ErrRouterNoLockedMem      uint32 = 0x0500
	ErrRouterResizeMem        uint32 = 0x0501
	ErrRouterMailboxFull      uint32 = 0x0502
	ErrRouterDebugboxFull     uint32 = 0x0503
	ErrRouterUnknownPortType  uint32 = 0x0504
	ErrRouterNotInitialized   uint32 = 0x0505
	ErrRouterPortRemoved      uint32 = 0x0506
	ErrRouterPortNotOpen      uint32 = 0x0507
	ErrRouterPortOpen         uint32 = 0x0508
	ErrRouterPortConnected    uint32 = 0x0509
	ErrRouterPortNotConnected uint32 = 0x050A
	ErrRouterNoSendQueue      uint32 = 0x050B

	ErrDeviceError            uint32 = 0x0700
	ErrDeviceSrvNotSupp       uint32 = 0x0701
	ErrDeviceInvalidGrp       uint32 = 0x0702
	ErrDeviceInvalidOffs      uint32 = 0x0703
	ErrDeviceInvalidAccess    uint32 = 0x0704
	ErrDeviceInvalidSize      uint32 = 0x0705
	ErrDeviceInvalidData      uint32 = 0x0706
	ErrDeviceNotReady         uint32 = 0x0707
	ErrDeviceBusy             uint32 = 0x0708
	ErrDeviceInvalidContext   uint32 = 0x0709
	ErrDeviceNoMemory         uint32 = 0x070A
	ErrDeviceInvalidParam     uint32 = 0x070B
	ErrDeviceNotFound         uint32 = 0x070C
	ErrDeviceSyntax           uint32 = 0x070D
	ErrDeviceIncompatible     uint32 = 0x070E
	ErrDeviceExists           uint32 = 0x070F
	ErrDeviceSymbolNotFound   uint32 = 0x0710
	ErrDeviceSymbolVersionInvalid uint32 = 0x0711
	ErrDeviceInvalidState     uint32 = 0x0712
	ErrDeviceTransModeNotSupp uint32 = 0x0713
	ErrDeviceNotifyHndInvalid uint32 = 0x0714
	ErrDeviceClientUnknown    uint32 = 0x0715
	ErrDeviceNoMoreHdls       uint32 = 0x0716
	ErrDeviceInvalidWatchSize uint32 = 0x0717
	ErrDeviceNotInit          uint32 = 0x0718
	ErrDeviceTimeout          uint32 = 0x0719
	ErrDeviceNoInterface      uint32 = 0x071A
	ErrDeviceInvalidInterface uint32 = 0x071B
	ErrDeviceInvalidClsId     uint32 = 0x071C
	ErrDeviceInvalidObjId     uint32 = 0x071D
	ErrDevicePending          uint32 = 0x071E
	ErrDeviceAborted          uint32 = 0x071F
	ErrDeviceWarning          uint32 = 0x0720
	ErrDeviceInvalidArrayIdx  uint32 = 0x0721
	ErrDeviceSymbolNotActive  uint32 = 0x0722
	ErrDeviceAccessDenied     uint32 = 0x0723
)

func errorName(code uint32) string {
	switch code {
	case ErrNoError:
		return "No error"
	case ErrTargetPortNotFound:
		return "Target port not found"
	case ErrTargetMachineNotFound:
		return "Target machine not found"
	case ErrPortNotConnected:
		return "Port not connected"
	case ErrDeviceError:
		return "Device error"
	case ErrDeviceSrvNotSupp:
		return "Service not supported"
	case ErrDeviceInvalidGrp:
		return "Invalid index group"
	case ErrDeviceInvalidOffs:
		return "Invalid index offset"
	case ErrDeviceInvalidAccess:
		return "Invalid access"
	case ErrDeviceInvalidSize:
		return "Invalid size"
	case ErrDeviceInvalidData:
		return "Invalid data"
	case ErrDeviceNotReady:
		return "Device not ready"
	case ErrDeviceBusy:
		return "Device busy"
	case ErrDeviceNoMemory:
		return "Out of memory"
	case ErrDeviceInvalidParam:
		return "Invalid parameter"
	case ErrDeviceNotFound:
		return "Device not found"
	case ErrDeviceSymbolNotFound:
		return "Symbol not found"
	case ErrDeviceSymbolVersionInvalid:
		return "Symbol version invalid"
	case ErrDeviceNotifyHndInvalid:
		return "Notification handle invalid"
	case ErrDeviceTimeout:
		return "Timeout"
	case ErrDeviceAccessDenied:
		return "Access denied"
	default:
		return fmt.Sprintf("Unknown error (0x%04X)", code)
	}
}
