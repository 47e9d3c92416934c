package ftpsh

import (
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"

	"github.com/gonzalop/ftpsh/internal/ratelimit"
)

// DefaultBufferSize is the chunk size for binary transfers.
const DefaultBufferSize = 256 * 1024

// transfer implements the byte-level operations shared by passive and active
// channels once the underlying connection is established.
type transfer struct {
	params channelParams
	open   func() (net.Conn, error)
}

// ReadListing reads the listing as text lines until the server closes the
// connection. Every line is terminated by "\r\n".
func (t transfer) ReadListing() (string, error) {
	conn, err := t.open()
	if err != nil {
		return "", err
	}

	var tr transform.Transformer = newCRLFTransformer()
	if t.params.charset != nil {
		tr = transform.Chain(tr, t.params.charset.NewDecoder())
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, transform.NewReader(t.throttle(conn), tr)); err != nil {
		return sb.String(), errors.Wrapf(ErrDataChannel, "read listing: %v", err)
	}
	return sb.String(), nil
}

// ReadFile copies the incoming file to w. ASCII mode re-terminates every
// line with "\r\n"; Binary mode copies the bytes unchanged.
func (t transfer) ReadFile(w io.Writer, mode TransferMode) (int64, error) {
	conn, err := t.open()
	if err != nil {
		return 0, err
	}

	src := t.throttle(conn)
	if mode == ASCII {
		src = transform.NewReader(src, newCRLFTransformer())
	}

	size := t.params.bufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	sink := &sinkWriter{w: w}
	n, err := io.CopyBuffer(sink, onlyReader{src}, make([]byte, size))
	if err != nil {
		if sink.err != nil {
			return n, errors.Wrapf(ErrLocalIO, "write: %v", sink.err)
		}
		return n, errors.Wrapf(ErrDataChannel, "read file: %v", err)
	}
	return n, nil
}

// throttle applies the configured rate limit, if any, to one transfer.
func (t transfer) throttle(r io.Reader) io.Reader {
	return ratelimit.NewReader(r, ratelimit.New(t.params.rateLimit))
}

// sinkWriter remembers the error returned by the destination, so a failed
// copy can be attributed to the local side or the network side.
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer uses the fixed-size
// buffer.
type onlyReader struct {
	io.Reader
}
