package ads

import "encoding/binary"

// frameReader turns a byte stream into complete AMS/TCP frames. Bytes are
// fed in as they arrive from the socket; Next extracts as many complete
// frames as are currently buffered and preserves any trailing partial
// frame for the next Feed call.
type frameReader struct {
	buf []byte
}

// Feed appends newly-read bytes to the reader's buffer.
func (r *frameReader) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// Next extracts the next complete frame from the buffer, if one is
// present. It returns ok=false when fewer than a full frame is buffered,
// leaving the partial bytes in place for a subsequent Feed+Next.
func (r *frameReader) Next() (frame tcpFrame, ok bool) {
	if len(r.buf) < tcpHeaderLen {
		return tcpFrame{}, false
	}
	dataLength := binary.LittleEndian.Uint32(r.buf[2:6])
	total := tcpHeaderLen + int(dataLength)
	if len(r.buf) < total {
		return tcpFrame{}, false
	}

	command := binary.LittleEndian.Uint16(r.buf[0:2])
	payload := make([]byte, dataLength)
	copy(payload, r.buf[tcpHeaderLen:total])

	remaining := make([]byte, len(r.buf)-total)
	copy(remaining, r.buf[total:])
	r.buf = remaining

	return tcpFrame{Command: command, Payload: payload}, true
}
