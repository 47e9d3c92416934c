package ftpsh

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding"
)

// Option is a functional option for configuring a Session.
type Option func(*Session) error

// WithPort sets the control port tried first. The default is 21.
func WithPort(port int) Option {
	return func(s *Session) error {
		if port <= 0 || port > 65535 {
			return errors.Errorf("invalid port %d", port)
		}
		s.port = port
		return nil
	}
}

// WithFallbackPort sets the port tried once when the first connect fails.
// The default is 2121; zero disables the retry.
func WithFallbackPort(port int) Option {
	return func(s *Session) error {
		if port < 0 || port > 65535 {
			return errors.Errorf("invalid fallback port %d", port)
		}
		s.fallbackPort = port
		return nil
	}
}

// WithTimeout bounds every connect, accept, read and write.
// The default of zero blocks until the peer answers or closes.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		s.timeout = timeout
		return nil
	}
}

// WithDialer sets the dialer used for the control connection and for
// passive data connections. Any golang.org/x/net/proxy dialer works, e.g.
//
//	d, _ := proxy.SOCKS5("tcp", "127.0.0.1:1080", nil, proxy.Direct)
//	s, _ := ftpsh.Open("ftp.example.com", p, ftpsh.WithDialer(d))
//
// Active mode is unaffected: the server always connects back directly.
func WithDialer(dialer proxy.Dialer) Option {
	return func(s *Session) error {
		if dialer == nil {
			return errors.Errorf("nil dialer")
		}
		s.dialer = dialer
		return nil
	}
}

// WithResolver sets the resolver used to look up the server. Defaults to
// net.DefaultResolver.
func WithResolver(r *net.Resolver) Option {
	return func(s *Session) error {
		s.resolver = r
		return nil
	}
}

// WithLogger enables logging of every command and reply at debug level.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).Level(zerolog.DebugLevel)
//	s, _ := ftpsh.Open("ftp.example.com", p, ftpsh.WithLogger(logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

// WithOutput sets where replies, listings and status lines are displayed.
// Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(s *Session) error {
		s.out = w
		return nil
	}
}

// WithActiveMode starts the session in active (PORT) mode instead of passive.
func WithActiveMode() Option {
	return func(s *Session) error {
		s.connMode = Active
		return nil
	}
}

// WithTransferMode sets the initial transfer representation. It is sent
// to the server as TYPE once the login completes.
func WithTransferMode(mode TransferMode) Option {
	return func(s *Session) error {
		s.xferMode = mode
		return nil
	}
}

// WithDebug starts the session with command echo enabled.
func WithDebug() Option {
	return func(s *Session) error {
		s.debug = true
		return nil
	}
}

// WithBufferSize sets the chunk size for binary transfers.
func WithBufferSize(size int) Option {
	return func(s *Session) error {
		if size <= 0 {
			return errors.Errorf("invalid buffer size %d", size)
		}
		s.bufferSize = size
		return nil
	}
}

// WithRateLimit caps every data connection at bytesPerSecond. Zero, the
// default, means unlimited.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(s *Session) error {
		if bytesPerSecond < 0 {
			return errors.Errorf("invalid rate limit %d", bytesPerSecond)
		}
		s.rateLimit = bytesPerSecond
		return nil
	}
}

// WithCharset decodes directory listings from the given encoding, e.g.
// charmap.ISO8859_1 for servers that send Latin-1 file names.
func WithCharset(enc encoding.Encoding) Option {
	return func(s *Session) error {
		s.charset = enc
		return nil
	}
}

// WithLocalDir sets the directory downloads are written to. Defaults to the
// working directory.
func WithLocalDir(dir string) Option {
	return func(s *Session) error {
		s.localDir = dir
		return nil
	}
}

// WithMaxCascade caps how many replies a single command may chain through
// automatic follow-up commands. The default is 8.
func WithMaxCascade(depth int) Option {
	return func(s *Session) error {
		if depth < 1 {
			return errors.Errorf("invalid cascade depth %d", depth)
		}
		s.maxCascade = depth
		return nil
	}
}

// WithProgress registers a callback that receives the running byte count of
// every download.
func WithProgress(fn func(file string, bytesTransferred int64)) Option {
	return func(s *Session) error {
		s.progress = fn
		return nil
	}
}
