package ftpsh

import (
	"net"
	"time"
)

// deadlineConn pushes the read or write deadline forward before every
// operation, so a timeout bounds each blocking call rather than the whole
// session.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// withDeadlines wraps conn when a timeout is configured.
func withDeadlines(conn net.Conn, timeout time.Duration) net.Conn {
	if timeout <= 0 {
		return conn
	}
	return &deadlineConn{Conn: conn, timeout: timeout}
}

// acceptOne waits for a single inbound connection on l.
func acceptOne(l net.Listener, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		if tl, ok := l.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(timeout))
		}
	}
	conn, err := l.Accept()
	if err != nil {
		return nil, err
	}
	return withDeadlines(conn, timeout), nil
}
