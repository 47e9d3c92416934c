package ftpsh

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NoCode is the status code of an empty reply.
const NoCode = -1

// codePattern matches the status line that ends a reply: three digits at the
// start of a line followed by whitespace.
var codePattern = regexp.MustCompile(`(?m)^(\d{3})\s`)

// Reply is one complete server reply read from the control connection.
// A Reply is immutable once parsed.
//
// Single-line:
//
//	"220 Welcome\r\n"
//
// Multi-line, where every line before the status line is preceding text:
//
//	"150-Here comes the directory\r\n"
//	"150 listing\r\n"
//	"226 Transfer complete.\r\n"
type Reply struct {
	pre  string
	code int
	text string
}

// emptyReply is returned by commands that never reach the server.
func emptyReply() *Reply {
	return &Reply{code: NoCode}
}

// ParseReply parses text accumulated from the control connection into a Reply.
// The last line that starts with a status code terminates the reply.
// Text shorter than three characters yields an empty reply.
func ParseReply(text string) (*Reply, error) {
	if len(text) < 3 {
		return emptyReply(), nil
	}

	matches := codePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, errors.Wrapf(ErrProtocolParse, "no status line in %q", text)
	}

	last := matches[len(matches)-1]
	codeStart, codeEnd := last[2], last[3]

	code, err := strconv.Atoi(text[codeStart:codeEnd])
	if err != nil || code < 100 || code > 599 {
		return nil, errors.Wrapf(ErrProtocolParse, "invalid status code %q", text[codeStart:codeEnd])
	}

	return &Reply{
		pre:  text[:codeStart],
		code: code,
		text: text[codeEnd:],
	}, nil
}

// isFinalLine reports whether line terminates a reply.
func isFinalLine(line string) bool {
	return codePattern.MatchString(line)
}

// Code returns the three-digit status code, or NoCode for an empty reply.
func (r *Reply) Code() int {
	return r.code
}

// Text returns the remainder of the status line after the code, exactly as
// received, including the separating whitespace and the line terminator.
func (r *Reply) Text() string {
	return r.text
}

// Message returns Text with surrounding whitespace removed.
func (r *Reply) Message() string {
	return strings.TrimSpace(r.text)
}

// PrecedingLines returns the lines received before the status line, without
// their terminators.
func (r *Reply) PrecedingLines() []string {
	if r.pre == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(r.pre, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// IsEmpty reports whether the reply carries no code and no text.
func (r *Reply) IsEmpty() bool {
	return r.code < 100 &&
		strings.TrimSpace(r.pre) == "" &&
		strings.TrimSpace(r.text) == ""
}

// Is1xx returns true if the reply code is in the 1xx range (preliminary).
func (r *Reply) Is1xx() bool {
	return r.code >= 100 && r.code < 200
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.code >= 200 && r.code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.code >= 300 && r.code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (r *Reply) Is4xx() bool {
	return r.code >= 400 && r.code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.code >= 500 && r.code < 600
}

// String returns the reply as it was received, or "" for an empty reply.
func (r *Reply) String() string {
	if r.IsEmpty() {
		return ""
	}
	return r.pre + strconv.Itoa(r.code) + r.text
}
