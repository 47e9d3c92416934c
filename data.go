package ftpsh

import (
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding"
)

// pasvRegex matches the address in a 227 reply: h1,h2,h3,h4,p1,p2
var pasvRegex = regexp.MustCompile(`(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3}),(\d{1,3})`)

// DataChannel is a single-use secondary connection carrying one directory
// listing or one file. It must be closed after the transfer.
type DataChannel interface {
	// ReadListing reads text lines until the server closes the connection
	// and returns them, each terminated by "\r\n".
	ReadListing() (string, error)

	// ReadFile copies the incoming file to w in the given representation and
	// returns the number of bytes written to w.
	ReadFile(w io.Writer, mode TransferMode) (int64, error)

	// Close releases the connection (and listener). Only the first call has
	// any effect.
	Close() error
}

// channelParams are the settings shared by both kinds of data channel.
type channelParams struct {
	timeout    time.Duration
	bufferSize int
	charset    encoding.Encoding
	rateLimit  int64
}

// parsePASV extracts the data endpoint from the text of a 227 reply.
// Example: "Entering Passive Mode (127,0,0,1,19,136)." yields 127.0.0.1:5000.
func parsePASV(text string) (string, error) {
	m := pasvRegex.FindStringSubmatch(text)
	if m == nil {
		return "", errors.Wrapf(ErrProtocolParse, "no address in passive reply %q", text)
	}

	var v [6]int
	for i := range 6 {
		n, err := strconv.Atoi(m[i+1])
		if err != nil || n > 255 {
			return "", errors.Wrapf(ErrProtocolParse, "invalid passive address part %q", m[i+1])
		}
		v[i] = n
	}

	host := fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
	port := v[4]*256 + v[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// resolveDataAddr substitutes the control host when the server advertises
// the unspecified address.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

// formatPORT renders an IPv4 endpoint as the PORT argument h1,h2,h3,h4,p1,p2.
func formatPORT(addr net.Addr) (string, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "", errors.Errorf("unsupported listener address %s", addr)
	}
	ip := tcp.IP.To4()
	if ip == nil {
		return "", errors.Errorf("PORT requires an IPv4 address, have %s", tcp.IP)
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], tcp.Port/256, tcp.Port%256), nil
}

// passiveChannel is a data connection the client opened to the server.
type passiveChannel struct {
	transfer
	conn net.Conn
	once sync.Once
	err  error
}

// dialPassive connects to the endpoint advertised in the text of a 227 reply.
func dialPassive(dialer proxy.Dialer, replyText, controlHost string, p channelParams) (*passiveChannel, error) {
	addr, err := parsePASV(replyText)
	if err != nil {
		return nil, err
	}
	addr = resolveDataAddr(addr, controlHost)

	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(ErrDataChannel, "connect to %s: %v", addr, err)
	}
	conn = withDeadlines(conn, p.timeout)

	pc := &passiveChannel{conn: conn}
	pc.transfer = transfer{
		params: p,
		open:   func() (net.Conn, error) { return pc.conn, nil },
	}
	return pc, nil
}

func (pc *passiveChannel) Close() error {
	pc.once.Do(func() {
		pc.err = pc.conn.Close()
	})
	return pc.err
}

// activeChannel listens for the server to connect back.
type activeChannel struct {
	transfer
	listener net.Listener
	conn     net.Conn
	once     sync.Once
	err      error
}

// listenActive opens a listener on an ephemeral port of localIP.
func listenActive(localIP net.IP, p channelParams) (*activeChannel, error) {
	if localIP == nil || localIP.To4() == nil {
		return nil, errors.Wrapf(ErrDataChannel, "active mode requires an IPv4 control connection, have %v", localIP)
	}

	l, err := net.Listen("tcp4", net.JoinHostPort(localIP.String(), "0"))
	if err != nil {
		return nil, errors.Wrapf(ErrDataChannel, "listen: %v", err)
	}

	ac := &activeChannel{listener: l}
	ac.transfer = transfer{params: p, open: ac.accept}
	return ac, nil
}

// PortArg returns the listener address formatted for the PORT command.
func (ac *activeChannel) PortArg() (string, error) {
	return formatPORT(ac.listener.Addr())
}

func (ac *activeChannel) accept() (net.Conn, error) {
	if ac.conn != nil {
		return ac.conn, nil
	}
	conn, err := acceptOne(ac.listener, ac.params.timeout)
	if err != nil {
		return nil, errors.Wrapf(ErrDataChannel, "accept: %v", err)
	}
	ac.conn = conn
	return conn, nil
}

func (ac *activeChannel) Close() error {
	ac.once.Do(func() {
		var connErr error
		if ac.conn != nil {
			connErr = ac.conn.Close()
		}
		ac.err = ac.listener.Close()
		if connErr != nil {
			ac.err = connErr
		}
	})
	return ac.err
}
