package ftpsh

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

func TestParsePASV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"standard", " Entering Passive Mode (127,0,0,1,19,136).\r\n", "127.0.0.1:5000", false},
		{"no parentheses", " Entering Passive Mode 10,0,0,5,4,1\r\n", "10.0.0.5:1025", false},
		{"unspecified host", " PASV (0,0,0,0,200,10)\r\n", "0.0.0.0:51210", false},
		{"missing numbers", " Entering Passive Mode (127,0,0,1,19).\r\n", "", true},
		{"byte out of range", " Entering Passive Mode (127,0,0,1,300,1).\r\n", "", true},
		{"garbage", " ok\r\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePASV(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrProtocolParse) {
					t.Errorf("parsePASV(%q) error = %v, want ErrProtocolParse", tt.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePASV(%q) error: %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("parsePASV(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolveDataAddr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr, control, want string
	}{
		{"0.0.0.0:5000", "192.0.2.7", "192.0.2.7:5000"},
		{"10.1.2.3:21000", "192.0.2.7", "10.1.2.3:21000"},
		{"bogus", "192.0.2.7", "bogus"},
	}
	for _, tt := range tests {
		if got := resolveDataAddr(tt.addr, tt.control); got != tt.want {
			t.Errorf("resolveDataAddr(%q, %q) = %q, want %q", tt.addr, tt.control, got, tt.want)
		}
	}
}

func TestFormatPORT(t *testing.T) {
	t.Parallel()
	got, err := formatPORT(&net.TCPAddr{IP: net.ParseIP("192.168.1.2"), Port: 5000})
	if err != nil {
		t.Fatal(err)
	}
	if got != "192,168,1,2,19,136" {
		t.Errorf("formatPORT = %q", got)
	}

	if _, err := formatPORT(&net.TCPAddr{IP: net.ParseIP("::1"), Port: 5000}); err == nil {
		t.Error("expected error for IPv6 address")
	}
	if _, err := formatPORT(&net.UnixAddr{Name: "/tmp/sock", Net: "unix"}); err == nil {
		t.Error("expected error for non-TCP address")
	}
}

func TestPASVRoundTrip(t *testing.T) {
	t.Parallel()
	addr := &net.TCPAddr{IP: net.IPv4(10, 20, 30, 40), Port: 65535}
	arg, err := formatPORT(addr)
	if err != nil {
		t.Fatal(err)
	}
	got, err := parsePASV("(" + arg + ")")
	if err != nil {
		t.Fatal(err)
	}
	if got != addr.String() {
		t.Errorf("round trip = %q, want %q", got, addr.String())
	}
}

func TestCRLFTransformer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, in, want string
	}{
		{"unix", "a\nb\n", "a\r\nb\r\n"},
		{"dos", "a\r\nb\r\n", "a\r\nb\r\n"},
		{"old mac", "a\rb\r", "a\r\nb\r\n"},
		{"mixed", "a\nb\r\nc\rd", "a\r\nb\r\nc\r\nd\r\n"},
		{"no trailing newline", "last", "last\r\n"},
		{"blank lines", "\n\n", "\r\n\r\n"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := transform.String(newCRLFTransformer(), tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// oneByteReader splits "\r\n" across reads.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestCRLFTransformer_SplitReads(t *testing.T) {
	t.Parallel()
	r := transform.NewReader(oneByteReader{strings.NewReader("x\r\ny\r\n")}, newCRLFTransformer())
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "x\r\ny\r\n" {
		t.Errorf("got %q", got)
	}
}

// serveOnce accepts one connection on a fresh listener and writes payload.
func serveOnce(t *testing.T, payload []byte) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write(payload)
	}()
	t.Cleanup(func() { l.Close() })
	return l
}

func pasvText(t *testing.T, addr net.Addr) string {
	t.Helper()
	arg, err := formatPORT(addr)
	if err != nil {
		t.Fatal(err)
	}
	return " Entering Passive Mode (" + arg + ").\r\n"
}

func TestPassiveChannel_ReadListing(t *testing.T) {
	t.Parallel()
	l := serveOnce(t, []byte("drwxr-xr-x 2 ftp ftp 4096 pub\nlrwxrwxrwx 1 ftp ftp 3 latest -> pub"))

	ch, err := dialPassive(proxy.Direct, pasvText(t, l.Addr()), "127.0.0.1", channelParams{})
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	got, err := ch.ReadListing()
	if err != nil {
		t.Fatal(err)
	}
	want := "drwxr-xr-x 2 ftp ftp 4096 pub\r\nlrwxrwxrwx 1 ftp ftp 3 latest -> pub\r\n"
	if got != want {
		t.Errorf("ReadListing() = %q, want %q", got, want)
	}
}

func TestPassiveChannel_ReadListingCharset(t *testing.T) {
	t.Parallel()
	// "café" in Latin-1.
	l := serveOnce(t, []byte("caf\xe9\n"))

	p := channelParams{charset: charmap.ISO8859_1}
	ch, err := dialPassive(proxy.Direct, pasvText(t, l.Addr()), "127.0.0.1", p)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	got, err := ch.ReadListing()
	if err != nil {
		t.Fatal(err)
	}
	if got != "café\r\n" {
		t.Errorf("ReadListing() = %q", got)
	}
}

func TestPassiveChannel_ReadFile(t *testing.T) {
	t.Parallel()
	payload := []byte("line one\nline two\r\n\x00\x01\xff")
	tests := []struct {
		name string
		mode TransferMode
		want []byte
	}{
		{"binary", Binary, payload},
		{"ascii", ASCII, []byte("line one\r\nline two\r\n\x00\x01\xff\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := serveOnce(t, payload)
			ch, err := dialPassive(proxy.Direct, pasvText(t, l.Addr()), "127.0.0.1", channelParams{bufferSize: 4})
			if err != nil {
				t.Fatal(err)
			}
			defer ch.Close()

			var buf bytes.Buffer
			n, err := ch.ReadFile(&buf, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Errorf("got %q, want %q", buf.Bytes(), tt.want)
			}
			if n != int64(len(tt.want)) {
				t.Errorf("n = %d, want %d", n, len(tt.want))
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPassiveChannel_ReadFileLocalError(t *testing.T) {
	t.Parallel()
	l := serveOnce(t, []byte("data"))
	ch, err := dialPassive(proxy.Direct, pasvText(t, l.Addr()), "127.0.0.1", channelParams{})
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	_, err = ch.ReadFile(failingWriter{}, Binary)
	if !errors.Is(err, ErrLocalIO) {
		t.Errorf("error = %v, want ErrLocalIO", err)
	}
}

// signalWriter collects what it is given and closes full once it holds at
// least want bytes.
type signalWriter struct {
	bytes.Buffer
	want int
	full chan struct{}
	once sync.Once
}

func (w *signalWriter) Write(p []byte) (int, error) {
	n, err := w.Buffer.Write(p)
	if w.Len() >= w.want {
		w.once.Do(func() { close(w.full) })
	}
	return n, err
}

// abortConn drops conn with a reset instead of an orderly close.
func abortConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	conn.Close()
}

func TestPassiveChannel_ReadFileReset(t *testing.T) {
	t.Parallel()
	partial := []byte("already-received-bytes")
	w := &signalWriter{want: len(partial), full: make(chan struct{})}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write(partial)
		select {
		case <-w.full:
		case <-time.After(5 * time.Second):
		}
		abortConn(conn)
	}()

	ch, err := dialPassive(proxy.Direct, pasvText(t, l.Addr()), "127.0.0.1", channelParams{bufferSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	n, err := ch.ReadFile(w, Binary)
	if !errors.Is(err, ErrDataChannel) || errors.Is(err, ErrLocalIO) {
		t.Errorf("error = %v, want ErrDataChannel", err)
	}
	if n != int64(len(partial)) || !bytes.Equal(w.Bytes(), partial) {
		t.Errorf("n = %d, received %q, want %q", n, w.Bytes(), partial)
	}
}

func TestDialPassive_Errors(t *testing.T) {
	t.Parallel()
	if _, err := dialPassive(proxy.Direct, " nothing here\r\n", "127.0.0.1", channelParams{}); !errors.Is(err, ErrProtocolParse) {
		t.Errorf("bad reply: error = %v, want ErrProtocolParse", err)
	}

	// A port nobody listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr()
	l.Close()
	if _, err := dialPassive(proxy.Direct, pasvText(t, addr), "127.0.0.1", channelParams{}); !errors.Is(err, ErrDataChannel) {
		t.Errorf("refused: error = %v, want ErrDataChannel", err)
	}
}

func TestPassiveChannel_CloseIdempotent(t *testing.T) {
	t.Parallel()
	l := serveOnce(t, nil)
	ch, err := dialPassive(proxy.Direct, pasvText(t, l.Addr()), "127.0.0.1", channelParams{})
	if err != nil {
		t.Fatal(err)
	}
	first := ch.Close()
	if second := ch.Close(); second != first {
		t.Errorf("second Close() = %v, first %v", second, first)
	}
}

func TestActiveChannel(t *testing.T) {
	t.Parallel()
	ch, err := listenActive(net.IPv4(127, 0, 0, 1), channelParams{timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	arg, err := ch.PortArg()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(arg, "127,0,0,1,") {
		t.Fatalf("PortArg() = %q", arg)
	}
	addr, err := parsePASV(arg)
	if err != nil {
		t.Fatal(err)
	}

	// The server side connects back and sends a file.
	go func() {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("hello\n"))
	}()

	var buf bytes.Buffer
	if _, err := ch.ReadFile(&buf, ASCII); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello\r\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestActiveChannel_AcceptTimeout(t *testing.T) {
	t.Parallel()
	ch, err := listenActive(net.IPv4(127, 0, 0, 1), channelParams{timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	if _, err := ch.ReadListing(); !errors.Is(err, ErrDataChannel) {
		t.Errorf("error = %v, want ErrDataChannel", err)
	}
}

func TestListenActive_RequiresIPv4(t *testing.T) {
	t.Parallel()
	if _, err := listenActive(net.ParseIP("::1"), channelParams{}); !errors.Is(err, ErrDataChannel) {
		t.Errorf("error = %v, want ErrDataChannel", err)
	}
	if _, err := listenActive(nil, channelParams{}); !errors.Is(err, ErrDataChannel) {
		t.Errorf("nil ip: error = %v, want ErrDataChannel", err)
	}
}
