package ftpsh

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type handler func(s *Session, args []string) (*Reply, error)

// commandNames lists the operator commands in sorted order.
var commandNames = [...]string{
	"ascii", "binary", "cd", "cdup", "debug", "dir", "get",
	"help", "passive", "put", "pwd", "quit", "user",
}

// lookup maps a lower-case command name to its handler.
func lookup(name string) (handler, bool) {
	switch name {
	case "ascii":
		return (*Session).ascii, true
	case "binary":
		return (*Session).binary, true
	case "cd":
		return (*Session).cd, true
	case "cdup":
		return (*Session).cdup, true
	case "debug":
		return (*Session).toggleDebug, true
	case "dir":
		return (*Session).dir, true
	case "get":
		return (*Session).get, true
	case "help":
		return (*Session).help, true
	case "passive":
		return (*Session).togglePassive, true
	case "put":
		return (*Session).put, true
	case "pwd":
		return (*Session).pwd, true
	case "quit":
		return (*Session).quit, true
	case "user":
		return (*Session).user, true
	}
	return nil, false
}

// Commands returns the recognised operator commands, sorted.
func Commands() []string {
	names := make([]string, len(commandNames))
	copy(names, commandNames[:])
	return names
}

// Execute runs one operator command, matched case-insensitively, to
// completion. The returned reply is the last one the server sent for the
// command; commands that stay local return an empty reply.
//
// Failures inside an open session leave it open unless the control
// connection was lost or the server answered 421; check IsOpen afterwards.
func (s *Session) Execute(command string, args ...string) (*Reply, error) {
	name := strings.ToLower(command)
	h, ok := lookup(name)
	if !ok {
		return emptyReply(), errors.Wrapf(ErrUnknownCommand, "%q", command)
	}
	if !s.open {
		return emptyReply(), ErrClosed
	}

	s.logger.Debug().Str("command", name).Strs("args", args).Msg("execute")
	reply, err := h(s, args)
	if reply == nil {
		reply = emptyReply()
	}
	return reply, err
}

func (s *Session) ascii(_ []string) (*Reply, error) {
	return s.setType(ASCII)
}

func (s *Session) binary(_ []string) (*Reply, error) {
	return s.setType(Binary)
}

func (s *Session) setType(mode TransferMode) (*Reply, error) {
	reply, err := s.exchange("TYPE", mode.typeCode())
	if err != nil {
		return reply, err
	}
	if reply.Code() < 400 {
		s.xferMode = mode
	}
	return reply, nil
}

func (s *Session) cd(args []string) (*Reply, error) {
	dir, err := s.argOrPrompt(args, "(remote-directory) ")
	if err != nil {
		return emptyReply(), err
	}
	return s.exchange("CWD", dir)
}

func (s *Session) cdup(_ []string) (*Reply, error) {
	return s.cd([]string{".."})
}

func (s *Session) toggleDebug(_ []string) (*Reply, error) {
	s.debug = !s.debug
	fmt.Fprintf(s.out, "Debugging %s.\n", onOff(s.debug))
	return emptyReply(), nil
}

func (s *Session) togglePassive(_ []string) (*Reply, error) {
	if s.connMode == Passive {
		s.connMode = Active
	} else {
		s.connMode = Passive
	}
	fmt.Fprintf(s.out, "Passive mode %s.\n", onOff(s.connMode == Passive))
	return emptyReply(), nil
}

func (s *Session) dir(args []string) (*Reply, error) {
	var listing string
	move := func(ch DataChannel) error {
		var err error
		listing, err = ch.ReadListing()
		// Show whatever arrived, even after a failure.
		fmt.Fprint(s.out, listing)
		return err
	}
	return s.runTransfer("dir", move, "LIST", args...)
}

func (s *Session) get(args []string) (*Reply, error) {
	remote, err := s.argOrPrompt(args, "(remote-file) ")
	if err != nil {
		return emptyReply(), err
	}
	local := path.Base(remote)
	if len(args) > 1 {
		local = args[1]
	}
	if !filepath.IsAbs(local) {
		local = filepath.Join(s.localDir, local)
	}

	mode := s.xferMode
	move := func(ch DataChannel) error {
		f, err := os.Create(local)
		if err != nil {
			return errors.Wrapf(ErrLocalIO, "create %s: %v", local, err)
		}
		n, copyErr := ch.ReadFile(trackProgress(f, local, s.progress), mode)
		closeErr := f.Close()
		if copyErr == nil && closeErr != nil {
			copyErr = errors.Wrapf(ErrLocalIO, "close %s: %v", local, closeErr)
		}
		if copyErr != nil {
			// The bytes already written stay in place.
			return errors.WithMessagef(copyErr, "%s: %d bytes written", local, n)
		}
		s.logger.Info().Str("remote", remote).Str("local", local).Int64("bytes", n).
			Str("mode", mode.String()).Msg("download complete")
		return nil
	}
	return s.runTransfer("get", move, "RETR", remote)
}

// help is answered by the front end, which owns the help text.
func (s *Session) help(_ []string) (*Reply, error) {
	return emptyReply(), nil
}

// put is recognised but uploads are not supported; the reply is suppressed.
func (s *Session) put(args []string) (*Reply, error) {
	s.logger.Debug().Strs("args", args).Msg("put is not supported")
	return emptyReply(), nil
}

func (s *Session) pwd(_ []string) (*Reply, error) {
	return s.exchange("XPWD")
}

func (s *Session) quit(_ []string) (*Reply, error) {
	reply, err := s.exchange("QUIT")
	s.shutdown()
	return reply, err
}

func (s *Session) user(args []string) (*Reply, error) {
	name, err := s.argOrPrompt(args, "(username) ")
	if err != nil {
		return emptyReply(), err
	}
	return s.exchange("USER", name)
}

// argOrPrompt returns the first argument, asking the operator when none was
// given.
func (s *Session) argOrPrompt(args []string, label string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	answer, err := s.prompter.Prompt(label)
	if err != nil {
		return "", errors.Wrap(err, "read argument")
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("missing argument")
	}
	return answer, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
