package ftpsh

import (
	"fmt"

	"github.com/pkg/errors"
)

// Reply codes the cascade reacts to.
const (
	codeServiceReady   = 220
	codePassiveMode    = 227
	codeLoggedIn       = 230
	codeNeedPassword   = 331
	codeUnavailable    = 421
	codeActionNotTaken = 550
)

// anonymousUser is sent when the operator answers the name prompt with nothing.
const anonymousUser = "anonymous"

// handleReply displays r and then reacts to its code, possibly sending
// follow-up commands whose replies are handled in turn. It returns the last
// reply of the chain.
func (s *Session) handleReply(r *Reply, depth int) (*Reply, error) {
	s.display(r)

	switch r.Code() {
	case codeServiceReady:
		name, err := s.prompter.User(fmt.Sprintf("Name (%s): ", s.control.hostName))
		if err != nil {
			return r, errors.Wrap(err, "read user name")
		}
		if name == "" {
			name = anonymousUser
		}
		return s.follow(r, depth, "USER", name)

	case codeNeedPassword:
		pass, err := s.prompter.Password("Password: ")
		if err != nil {
			return r, errors.Wrap(err, "read password")
		}
		return s.follow(r, depth, "PASS", pass)

	case codePassiveMode:
		s.closeData()
		ch, err := dialPassive(s.dialer, r.Text(), s.control.ip.String(), s.channelParams())
		if err != nil {
			return r, opError("PASV", ErrDataChannel, err)
		}
		s.data = ch
		s.logger.Debug().Msg("passive data channel connected")

	case codeUnavailable:
		s.shutdown()

	case codeActionNotTaken:
		s.closeData()
	}

	return r, nil
}

// follow sends a command triggered by reply r, one level deeper in the cascade.
func (s *Session) follow(r *Reply, depth int, command string, args ...string) (*Reply, error) {
	if depth+1 >= s.maxCascade {
		return r, errors.Wrapf(ErrCascadeDepth, "after %d replies", depth+1)
	}
	return s.exchangeAt(depth+1, command, args...)
}

func (s *Session) channelParams() channelParams {
	return channelParams{
		timeout:    s.timeout,
		bufferSize: s.bufferSize,
		charset:    s.charset,
		rateLimit:  s.rateLimit,
	}
}

// runTransfer negotiates a data channel, sends command and hands the
// channel to move. The channel is closed on every path before the
// completion reply is read.
func (s *Session) runTransfer(op string, move func(DataChannel) error, command string, args ...string) (*Reply, error) {
	defer s.closeData()

	var reply *Reply
	var err error
	if s.connMode == Passive {
		reply, err = s.exchange("PASV")
		if err != nil {
			return reply, err
		}
		if s.data == nil || !s.open {
			return reply, nil
		}
	} else {
		reply, err = s.openActive()
		if err != nil || s.data == nil || !s.open {
			return reply, err
		}
	}

	reply, err = s.exchange(command, args...)
	if err != nil {
		return reply, err
	}
	// 550 has already closed the channel; any other refusal means no data
	// will arrive.
	if s.data == nil || !s.open || reply.Code() >= 400 {
		return reply, nil
	}

	moveErr := move(s.data)
	if moveErr != nil {
		moveErr = opError(op, ErrDataChannel, moveErr)
		s.logger.Warn().Err(moveErr).Msg("transfer failed")
	}
	s.closeData()

	if !reply.Is1xx() {
		return reply, moveErr
	}

	final, err := s.readReply(command)
	if err != nil {
		if moveErr != nil {
			return emptyReply(), moveErr
		}
		return emptyReply(), err
	}
	final, err = s.handleReply(final, 0)
	if moveErr != nil {
		return final, moveErr
	}
	return final, err
}

// openActive listens locally and advertises the endpoint with PORT. The
// channel is kept only when the server accepts it.
func (s *Session) openActive() (*Reply, error) {
	ch, err := listenActive(s.control.localIP(), s.channelParams())
	if err != nil {
		return emptyReply(), opError("PORT", ErrDataChannel, err)
	}
	arg, err := ch.PortArg()
	if err != nil {
		_ = ch.Close()
		return emptyReply(), opError("PORT", ErrDataChannel, err)
	}
	s.data = ch

	reply, err := s.exchange("PORT", arg)
	if err != nil {
		return reply, err
	}
	if !reply.Is2xx() {
		s.closeData()
	}
	return reply, nil
}
