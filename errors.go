package ftpsh

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by a Session matches exactly one of the
// first four with errors.Is, or one of the usage errors below them.
var (
	// ErrConnection reports a DNS or connect failure on both ports, or an
	// unexpected close of the control connection.
	ErrConnection = errors.New("connection error")

	// ErrProtocolParse reports text from the server that carries no status line.
	ErrProtocolParse = errors.New("malformed server reply")

	// ErrDataChannel reports a listen, accept, connect or read failure on a
	// data connection.
	ErrDataChannel = errors.New("data channel error")

	// ErrLocalIO reports a failure to create or write a local file.
	ErrLocalIO = errors.New("local file error")

	ErrClosed         = errors.New("session is closed")
	ErrUnknownCommand = errors.New("unknown command")
	ErrCascadeDepth   = errors.New("reply cascade exceeded maximum depth")
)

// OpError records the operation that failed, the kind of failure and the
// underlying cause.
type OpError struct {
	// Op is the operator or protocol command being executed (e.g. "get", "PASV").
	Op string

	// Kind is one of ErrConnection, ErrProtocolParse, ErrDataChannel or ErrLocalIO.
	Kind error

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("ftp: %s: %v", e.Op, e.Kind)
	case errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("ftp: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("ftp: %s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Cause returns the underlying error, for github.com/pkg/errors.Cause.
func (e *OpError) Cause() error {
	return e.Err
}

var errorKinds = []error{ErrConnection, ErrProtocolParse, ErrDataChannel, ErrLocalIO}

// opError attributes err to op. A kind found in err's chain takes precedence
// over the given default.
func opError(op string, kind, err error) error {
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	for _, k := range errorKinds {
		if errors.Is(err, k) {
			kind = k
			break
		}
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}
