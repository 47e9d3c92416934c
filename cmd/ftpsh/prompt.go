package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// termPrompter reads answers from the same input as the command loop.
// A preset user or password answers the first login only.
type termPrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int

	user     string
	password string
}

func newTermPrompter(in *bufio.Reader, user, password string) *termPrompter {
	return &termPrompter{
		in:       in,
		out:      os.Stdout,
		fd:       int(os.Stdin.Fd()),
		user:     user,
		password: password,
	}
}

func (p *termPrompter) Prompt(label string) (string, error) {
	fmt.Fprint(p.out, label)
	return p.readLine()
}

func (p *termPrompter) User(label string) (string, error) {
	if p.user != "" {
		user := p.user
		p.user = ""
		return user, nil
	}
	return p.Prompt(label)
}

func (p *termPrompter) Password(label string) (string, error) {
	if p.password != "" {
		pass := p.password
		p.password = ""
		return pass, nil
	}
	fmt.Fprint(p.out, label)
	if !term.IsTerminal(p.fd) {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *termPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
