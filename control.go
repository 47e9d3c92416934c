package ftpsh

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

const (
	// DefaultPort is the standard FTP control port.
	DefaultPort = 21

	// DefaultFallbackPort is tried once when DefaultPort refuses the connection.
	// Test servers commonly listen there.
	DefaultFallbackPort = 2121
)

// controlConn is the persistent text channel to the server's command port.
type controlConn struct {
	conn   net.Conn
	reader *bufio.Reader
	logger zerolog.Logger

	hostName string
	ip       net.IP

	closeOnce sync.Once
	closeErr  error
}

type dialParams struct {
	dialer       proxy.Dialer
	resolver     *net.Resolver
	port         int
	fallbackPort int
	timeout      time.Duration
	logger       zerolog.Logger
}

// dialControl resolves host and connects to its command port, retrying once on
// the fallback port.
func dialControl(host string, p dialParams) (*controlConn, error) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	addrs, err := p.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "host %s could not be resolved", host)
	}
	if len(addrs) == 0 {
		return nil, errors.Errorf("host %s could not be resolved", host)
	}
	ip := addrs[0].IP

	hostName := host
	if names, err := p.resolver.LookupAddr(ctx, ip.String()); err == nil && len(names) > 0 {
		hostName = strings.TrimSuffix(names[0], ".")
	}

	conn, err := dialPort(p, ip, p.port)
	if err != nil && p.fallbackPort > 0 && p.fallbackPort != p.port {
		p.logger.Debug().Err(err).Int("port", p.port).Int("fallback_port", p.fallbackPort).
			Msg("control connect failed, trying fallback port")
		conn, err = dialPort(p, ip, p.fallbackPort)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "host %s could not be reached", host)
	}

	conn = withDeadlines(conn, p.timeout)

	return &controlConn{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		logger:   p.logger,
		hostName: hostName,
		ip:       ip,
	}, nil
}

func dialPort(p dialParams, ip net.IP, port int) (net.Conn, error) {
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(port))
	p.logger.Debug().Str("addr", addr).Msg("connecting to ftp server")
	return p.dialer.Dial("tcp", addr)
}

// sendLine writes one command line. It never waits for a reply.
func (c *controlConn) sendLine(command string, args ...string) error {
	line := command
	if len(args) > 0 {
		line = command + " " + strings.Join(args, " ")
	}

	if command == "PASS" {
		c.logger.Debug().Str("cmd", "PASS ****").Msg("ftp command")
	} else {
		c.logger.Debug().Str("cmd", line).Msg("ftp command")
	}

	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		return errors.Wrapf(err, "failed to send %s", command)
	}
	return nil
}

// readReply blocks until a complete reply has been received.
func (c *controlConn) readReply() (*Reply, error) {
	var block strings.Builder
	for {
		line, err := c.reader.ReadString('\n')
		block.WriteString(line)
		if err != nil {
			if line != "" && isFinalLine(line) {
				// Server closed right after an unterminated status line.
				break
			}
			return nil, errors.Wrap(err, "control connection closed while reading reply")
		}
		if isFinalLine(line) {
			break
		}
	}

	reply, err := ParseReply(block.String())
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("code", reply.Code()).Str("message", reply.Message()).Msg("ftp response")
	return reply, nil
}

// localIP returns the address the control connection is bound to locally.
func (c *controlConn) localIP() net.IP {
	if addr, ok := c.conn.LocalAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

// Close closes the socket. Only the first call has any effect.
func (c *controlConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
