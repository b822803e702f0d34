package ads

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jisotalo/ads-client/logging"
)

// doRequest is the single chokepoint every ADS command passes through:
// assign an invoke-id, register it, write the framed request, and wait
// for either a matched response, a timeout, or context cancellation.
// Grounded on spec.md §4.4 steps 1-5.
func (c *Client) doRequest(ctx context.Context, target AmsAddress, cmdID uint16, payload []byte) ([]byte, error) {
	c.mu.RLock()
	local := c.localAddr
	c.mu.RUnlock()

	id, ch := c.registry.register(c.opts.timeoutDelay)

	header := amsHeader{
		TargetNetId: target.NetId,
		TargetPort:  target.Port,
		SourceNetId: local.NetId,
		SourcePort:  local.Port,
		CommandId:   cmdID,
		StateFlags:  StateAdsCommand,
		InvokeId:    id,
	}
	frame := buildADSFrame(header, payload)
	logging.DebugTX("ads", frame)

	if err := c.transport.write(frame); err != nil {
		c.registry.evict(id, err)
		return nil, &TransportError{Message: "write failed", Err: err}
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.header.ErrorCode != 0 {
			return nil, &AmsError{Code: res.header.ErrorCode}
		}
		return res.payload, nil
	case <-ctx.Done():
		c.registry.evict(id, ctx.Err())
		return nil, ctx.Err()
	}
}

func adsPayloadError(payload []byte) error {
	if len(payload) < 4 {
		return fmt.Errorf("short ADS response (%d bytes)", len(payload))
	}
	code := binary.LittleEndian.Uint32(payload[0:4])
	if code != 0 {
		return &AdsError{Code: code}
	}
	return nil
}

// DeviceInfo is the decoded ReadDeviceInfo response.
type DeviceInfo struct {
	MajorVersion uint8
	MinorVersion uint8
	BuildVersion uint16
	DeviceName   string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (v%d.%d.%d)", d.DeviceName, d.MajorVersion, d.MinorVersion, d.BuildVersion)
}

// readDeviceInfoFrom issues the ADS ReadDeviceInfo command against target.
func (c *Client) readDeviceInfoFrom(ctx context.Context, target AmsAddress) (DeviceInfo, error) {
	payload, err := c.doRequest(ctx, target, CmdReadDeviceInfo, nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	if err := adsPayloadError(payload); err != nil {
		return DeviceInfo{}, err
	}
	if len(payload) < 24 {
		return DeviceInfo{}, fmt.Errorf("short ReadDeviceInfo response (%d bytes)", len(payload))
	}
	return DeviceInfo{
		MajorVersion: payload[4],
		MinorVersion: payload[5],
		BuildVersion: binary.LittleEndian.Uint16(payload[6:8]),
		DeviceName:   trimNull(payload[8:24]),
	}, nil
}

// readRaw issues the ADS Read command: {indexGroup, indexOffset, length}.
func (c *Client) readRaw(ctx context.Context, target AmsAddress, indexGroup, indexOffset, length uint32) ([]byte, error) {
	req := make([]byte, 12)
	binary.LittleEndian.PutUint32(req[0:4], indexGroup)
	binary.LittleEndian.PutUint32(req[4:8], indexOffset)
	binary.LittleEndian.PutUint32(req[8:12], length)

	payload, err := c.doRequest(ctx, target, CmdRead, req)
	if err != nil {
		return nil, err
	}
	if err := adsPayloadError(payload); err != nil {
		return nil, err
	}
	if len(payload) < 8 {
		return nil, fmt.Errorf("short Read response (%d bytes)", len(payload))
	}
	n := binary.LittleEndian.Uint32(payload[4:8])
	if len(payload) < int(8+n) {
		return nil, fmt.Errorf("truncated Read response: want %d bytes, got %d", n, len(payload)-8)
	}
	return payload[8 : 8+n], nil
}

// writeRaw issues the ADS Write command: {indexGroup, indexOffset, length, data}.
func (c *Client) writeRaw(ctx context.Context, target AmsAddress, indexGroup, indexOffset uint32, data []byte) error {
	req := make([]byte, 12+len(data))
	binary.LittleEndian.PutUint32(req[0:4], indexGroup)
	binary.LittleEndian.PutUint32(req[4:8], indexOffset)
	binary.LittleEndian.PutUint32(req[8:12], uint32(len(data)))
	copy(req[12:], data)

	payload, err := c.doRequest(ctx, target, CmdWrite, req)
	if err != nil {
		return err
	}
	return adsPayloadError(payload)
}

// readWriteRaw issues the ADS ReadWrite command:
// {indexGroup, indexOffset, readLength, writeLength, writeData}.
func (c *Client) readWriteRaw(ctx context.Context, target AmsAddress, indexGroup, indexOffset, readLength uint32, writeData []byte) ([]byte, error) {
	req := make([]byte, 16+len(writeData))
	binary.LittleEndian.PutUint32(req[0:4], indexGroup)
	binary.LittleEndian.PutUint32(req[4:8], indexOffset)
	binary.LittleEndian.PutUint32(req[8:12], readLength)
	binary.LittleEndian.PutUint32(req[12:16], uint32(len(writeData)))
	copy(req[16:], writeData)

	payload, err := c.doRequest(ctx, target, CmdReadWrite, req)
	if err != nil {
		return nil, err
	}
	if err := adsPayloadError(payload); err != nil {
		return nil, err
	}
	if len(payload) < 8 {
		return nil, fmt.Errorf("short ReadWrite response (%d bytes)", len(payload))
	}
	n := binary.LittleEndian.Uint32(payload[4:8])
	if len(payload) < int(8+n) {
		return nil, fmt.Errorf("truncated ReadWrite response: want %d bytes, got %d", n, len(payload)-8)
	}
	return payload[8 : 8+n], nil
}

// DeviceState is the {adsState, deviceState} pair returned by ReadState.
type DeviceState struct {
	AdsState    uint16
	DeviceState uint16
}

// readStateFrom issues the ADS ReadState command against target.
func (c *Client) readStateFrom(ctx context.Context, target AmsAddress) (DeviceState, error) {
	payload, err := c.doRequest(ctx, target, CmdReadState, nil)
	if err != nil {
		return DeviceState{}, err
	}
	if err := adsPayloadError(payload); err != nil {
		return DeviceState{}, err
	}
	if len(payload) < 8 {
		return DeviceState{}, fmt.Errorf("short ReadState response (%d bytes)", len(payload))
	}
	return DeviceState{
		AdsState:    binary.LittleEndian.Uint16(payload[4:6]),
		DeviceState: binary.LittleEndian.Uint16(payload[6:8]),
	}, nil
}

// writeControl issues the ADS WriteControl command:
// {adsState, deviceState, dataLen, data}.
func (c *Client) writeControl(ctx context.Context, target AmsAddress, adsState, deviceState uint16, data []byte) error {
	req := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint16(req[0:2], adsState)
	binary.LittleEndian.PutUint16(req[2:4], deviceState)
	binary.LittleEndian.PutUint32(req[4:8], uint32(len(data)))
	copy(req[8:], data)

	payload, err := c.doRequest(ctx, target, CmdWriteControl, req)
	if err != nil {
		return err
	}
	return adsPayloadError(payload)
}

// addNotification issues the ADS AddNotification command.
func (c *Client) addNotification(ctx context.Context, target AmsAddress, indexGroup, indexOffset, size uint32, transMode TransmissionMode, maxDelay, cycleTime time.Duration) (uint32, error) {
	req := make([]byte, 40)
	binary.LittleEndian.PutUint32(req[0:4], indexGroup)
	binary.LittleEndian.PutUint32(req[4:8], indexOffset)
	binary.LittleEndian.PutUint32(req[8:12], size)
	binary.LittleEndian.PutUint32(req[12:16], uint32(transMode))
	binary.LittleEndian.PutUint32(req[16:20], durationTo100ns(maxDelay))
	binary.LittleEndian.PutUint32(req[20:24], durationTo100ns(cycleTime))
	// req[24:40] reserved, left zero.

	payload, err := c.doRequest(ctx, target, CmdAddDeviceNotification, req)
	if err != nil {
		return 0, err
	}
	if err := adsPayloadError(payload); err != nil {
		return 0, err
	}
	if len(payload) < 8 {
		return 0, fmt.Errorf("short AddNotification response (%d bytes)", len(payload))
	}
	return binary.LittleEndian.Uint32(payload[4:8]), nil
}

// deleteNotification issues the ADS DeleteNotification command.
func (c *Client) deleteNotification(ctx context.Context, target AmsAddress, handle uint32) error {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, handle)

	payload, err := c.doRequest(ctx, target, CmdDeleteDeviceNotification, req)
	if err != nil {
		return err
	}
	return adsPayloadError(payload)
}

func durationTo100ns(d time.Duration) uint32 {
	return uint32(d.Nanoseconds() / 100)
}

func trimNull(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
