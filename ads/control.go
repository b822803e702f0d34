package ads

import "context"

// ADS state constants relevant to WriteControl, per spec.md §4.12.
const (
	AdsStateInvalid     uint16 = 0
	AdsStateIdle        uint16 = 1
	AdsStateReset       uint16 = 2
	AdsStateInit        uint16 = 3
	AdsStateStart       uint16 = 4
	AdsStateRun         uint16 = 5
	AdsStateStop        uint16 = 6
	AdsStateSaveConfig  uint16 = 7
	AdsStateLoadConfig  uint16 = 8
	AdsStatePowerFail   uint16 = 9
	AdsStatePowerGood   uint16 = 10
	AdsStateError       uint16 = 11
	AdsStateShutdown    uint16 = 12
)

// StartTask sets the PLC runtime to Run, preserving its current device
// state. Grounded on spec.md §4.12's "read current state, write back
// with the ADS state field changed" control-command pattern.
func (c *Client) StartTask(ctx context.Context) error {
	return c.setAdsState(ctx, AdsStateRun)
}

// StopTask sets the PLC runtime to Stop, preserving its current device state.
func (c *Client) StopTask(ctx context.Context) error {
	return c.setAdsState(ctx, AdsStateStop)
}

// ResetTask issues a Reset control command.
func (c *Client) ResetTask(ctx context.Context) error {
	return c.setAdsState(ctx, AdsStateReset)
}

func (c *Client) setAdsState(ctx context.Context, adsState uint16) error {
	current, err := c.readStateFrom(ctx, c.targetAddr)
	if err != nil {
		return err
	}
	return c.writeControl(ctx, c.targetAddr, adsState, current.DeviceState, nil)
}

// SetSystemManagerToRun issues WriteControl against the TwinCAT System
// Service port, switching the whole runtime from Config to Run mode.
func (c *Client) SetSystemManagerToRun(ctx context.Context) error {
	target := AmsAddress{NetId: c.targetAddr.NetId, Port: PortSystemService}
	return c.writeControl(ctx, target, AdsStateRun, 0, nil)
}

// SetSystemManagerToConfig switches the whole runtime to Config mode.
func (c *Client) SetSystemManagerToConfig(ctx context.Context) error {
	target := AmsAddress{NetId: c.targetAddr.NetId, Port: PortSystemService}
	return c.writeControl(ctx, target, AdsStateReset, 0, nil)
}
