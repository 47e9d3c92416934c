package ftpsh

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding"
)

// TransferMode is the representation used for file transfers.
type TransferMode int

const (
	// Binary copies bytes unchanged (TYPE I).
	Binary TransferMode = iota
	// ASCII re-terminates every line with CRLF (TYPE A).
	ASCII
)

func (m TransferMode) String() string {
	if m == ASCII {
		return "ascii"
	}
	return "binary"
}

// typeCode is the TYPE argument for m.
func (m TransferMode) typeCode() string {
	if m == ASCII {
		return "A"
	}
	return "I"
}

// ConnectionMode selects who opens the data connection.
type ConnectionMode int

const (
	// Passive: the client connects to an endpoint chosen by the server (PASV).
	Passive ConnectionMode = iota
	// Active: the server connects to an endpoint chosen by the client (PORT).
	Active
)

func (m ConnectionMode) String() string {
	if m == Active {
		return "active"
	}
	return "passive"
}

// defaultMaxCascade bounds reply chaining; a well-behaved login needs three
// levels (220, 331, 230).
const defaultMaxCascade = 8

// Session is one control connection to an FTP server together with the
// operator-visible state that drives it. A Session is not safe for
// concurrent use: each Execute call runs to completion, including any
// cascaded replies and data transfer, before the next may start.
type Session struct {
	id       string
	open     bool
	debug    bool
	connMode ConnectionMode
	xferMode TransferMode

	control *controlConn
	data    DataChannel

	prompter Prompter
	out      io.Writer
	logger   zerolog.Logger

	// configuration
	host         string
	port         int
	fallbackPort int
	timeout      time.Duration
	dialer       proxy.Dialer
	resolver     *net.Resolver
	bufferSize   int
	charset      encoding.Encoding
	rateLimit    int64
	localDir     string
	maxCascade   int
	progress     func(file string, bytesTransferred int64)
}

// Open connects to host and runs the server greeting through the reply
// cascade, which normally prompts for the user name and password.
//
// Example:
//
//	s, err := ftpsh.Open("ftp.example.com", prompter, ftpsh.WithOutput(os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for s.IsOpen() {
//	    // read a command, then:
//	    _, err := s.Execute("dir")
//	}
func Open(host string, prompter Prompter, options ...Option) (*Session, error) {
	s := &Session{
		id:           uuid.New().String(),
		connMode:     Passive,
		xferMode:     Binary,
		prompter:     prompter,
		out:          io.Discard,
		logger:       zerolog.Nop(),
		host:         host,
		port:         DefaultPort,
		fallbackPort: DefaultFallbackPort,
		resolver:     net.DefaultResolver,
		bufferSize:   DefaultBufferSize,
		localDir:     ".",
		maxCascade:   defaultMaxCascade,
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "failed to apply option")
		}
	}

	if s.dialer == nil {
		s.dialer = &net.Dialer{Timeout: s.timeout}
	}
	s.logger = s.logger.With().Str("session", s.id).Str("host", host).Logger()

	control, err := dialControl(host, dialParams{
		dialer:       s.dialer,
		resolver:     s.resolver,
		port:         s.port,
		fallbackPort: s.fallbackPort,
		timeout:      s.timeout,
		logger:       s.logger,
	})
	if err != nil {
		return nil, opError("connect", ErrConnection, err)
	}
	s.control = control
	s.open = true
	s.logger.Info().Str("hostname", control.hostName).Str("ip", control.ip.String()).Msg("connected")

	greeting, err := s.readReply("connect")
	if err != nil {
		s.shutdown()
		return nil, err
	}
	last, err := s.handleReply(greeting, 0)
	switch {
	case err != nil:
		if !s.open {
			return nil, err
		}
		// Login failures are reported but the operator may retry with "user".
		s.logger.Warn().Err(err).Msg("login cascade failed")
		fmt.Fprintln(s.out, err)
	case last.Code() == codeLoggedIn:
		s.syncType()
	}
	if !s.open {
		return nil, opError("connect", ErrConnection, errors.Errorf("server closed the session: %s", greeting.Message()))
	}
	return s, nil
}

// syncType tells the server which representation the session starts in, so
// the local mode and the server's agree from the first transfer.
func (s *Session) syncType() {
	reply, err := s.exchange("TYPE", s.xferMode.typeCode())
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Msg("failed to set initial transfer type")
	case reply.Code() >= 400:
		s.logger.Warn().Int("code", reply.Code()).Str("mode", s.xferMode.String()).
			Msg("server refused initial transfer type")
	}
}

// IsOpen reports whether the control connection is still usable.
func (s *Session) IsOpen() bool {
	return s.open
}

// IsDebug reports whether sent commands are echoed to the output.
func (s *Session) IsDebug() bool {
	return s.debug
}

// TransferMode returns the current transfer representation.
func (s *Session) TransferMode() TransferMode {
	return s.xferMode
}

// ConnectionMode returns the current data connection mode.
func (s *Session) ConnectionMode() ConnectionMode {
	return s.connMode
}

// HostName returns the server name resolved at connect time.
func (s *Session) HostName() string {
	return s.control.hostName
}

// IP returns the server address resolved at connect time.
func (s *Session) IP() net.IP {
	return s.control.ip
}

// Close closes any data channel and the control connection without sending
// QUIT. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeData()
	s.open = false
	if s.control == nil {
		return nil
	}
	return s.control.Close()
}

// shutdown marks the session closed after a fatal reply or a dropped socket.
func (s *Session) shutdown() {
	if err := s.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("closing control connection")
	}
	s.logger.Info().Msg("session closed")
}

// send writes one command on the control connection, echoing it when debug
// is on.
func (s *Session) send(command string, args ...string) error {
	if s.debug {
		if command == "PASS" {
			fmt.Fprintln(s.out, "---> PASS XXXX")
		} else if len(args) > 0 {
			fmt.Fprintf(s.out, "---> %s %s\n", command, strings.Join(args, " "))
		} else {
			fmt.Fprintf(s.out, "---> %s\n", command)
		}
	}
	if err := s.control.sendLine(command, args...); err != nil {
		s.shutdown()
		return opError(command, ErrConnection, err)
	}
	return nil
}

// readReply reads one reply; a dropped connection closes the session.
func (s *Session) readReply(op string) (*Reply, error) {
	reply, err := s.control.readReply()
	if err != nil {
		if !errors.Is(err, ErrProtocolParse) {
			s.shutdown()
		}
		return nil, opError(op, ErrConnection, err)
	}
	return reply, nil
}

// exchange sends a command and runs its reply through the cascade.
func (s *Session) exchange(command string, args ...string) (*Reply, error) {
	return s.exchangeAt(0, command, args...)
}

func (s *Session) exchangeAt(depth int, command string, args ...string) (*Reply, error) {
	if err := s.send(command, args...); err != nil {
		return emptyReply(), err
	}
	reply, err := s.readReply(command)
	if err != nil {
		return emptyReply(), err
	}
	return s.handleReply(reply, depth)
}

// display writes a reply to the output exactly as received.
func (s *Session) display(r *Reply) {
	if text := r.String(); text != "" {
		io.WriteString(s.out, text)
	}
}

// closeData releases the data channel, if any.
func (s *Session) closeData() {
	if s.data == nil {
		return
	}
	if err := s.data.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("closing data channel")
	}
	s.data = nil
}
