package ads

import (
	"context"
	"net"
	"time"
)

// transport owns the single TCP connection to the local AMS router.
type transport struct {
	conn net.Conn
}

// dialTransport opens the TCP connection and enables TCP_NODELAY, matching
// the teacher's connect-time socket configuration.
func dialTransport(ctx context.Context, address string, timeout time.Duration) (*transport, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetKeepAlive(true)
	}
	return &transport{conn: conn}, nil
}

func (t *transport) write(frame []byte) error {
	_, err := t.conn.Write(frame)
	return err
}

func (t *transport) read(buf []byte) (int, error) {
	return t.conn.Read(buf)
}

func (t *transport) close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *transport) localAddr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.LocalAddr().String()
}
