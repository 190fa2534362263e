package game

import (
	"errors"
	"strings"

	"github.com/gaia-mud/gaia/pkg/account"
)

// maxLoginRetries disconnects a session after this many consecutive
// failed logins.
const maxLoginRetries = 3

// HandleLine routes one decoded input line by session state.
func (gm *Game) HandleLine(s *Session, line string) {
	line = strings.TrimRight(line, "\r\n")
	if s.State() == StateLogin {
		gm.handleLoginLine(s, line)
		return
	}
	if strings.TrimSpace(line) == "" {
		return
	}
	gm.Dispatch(s, line)
}

// handleLoginLine is the pre-auth state machine: WHO and QUIT are
// allowed, everything else must be `connect <user> <password>`.
func (gm *Game) handleLoginLine(s *Session, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	switch strings.ToUpper(line) {
	case "QUIT":
		s.Send(gm.Texts.Quit())
		s.Close()
		return
	case "WHO":
		s.Send(gm.FormatWho())
		return
	}

	fields := strings.Fields(line)
	if strings.EqualFold(fields[0], "create") {
		gm.handleCreateAccount(s, fields)
		return
	}
	if !strings.EqualFold(fields[0], "connect") || len(fields) != 3 {
		s.Send("Use: connect <user> <password>")
		return
	}

	acct, err := gm.Accounts.Authenticate(fields[1], fields[2])
	if err != nil {
		s.mu.Lock()
		s.retries++
		retries := s.retries
		s.mu.Unlock()

		gm.Logf("[%d] failed login for %q (%d/%d)", s.ID, fields[1], retries, maxLoginRetries)
		if retries >= maxLoginRetries {
			s.Send("Too many failed logins.")
			s.Close()
			return
		}
		s.Send("Invalid user or password.")
		return
	}

	if err := gm.Sessions.Authenticate(s, acct); err != nil {
		gm.Logf("[%d] authenticate: %v", s.ID, err)
		s.Send("Login failed; try again later.")
		return
	}
	s.Send("Welcome, " + acct.Login + ".")
	if motd := gm.Texts.Motd(); motd != "" {
		s.Send(motd)
	}
	s.Send(`Use "connect character <name>" to enter the world.`)
}

// handleCreateAccount is `create <user> <password>` at the login prompt.
// A new account logs straight in.
func (gm *Game) handleCreateAccount(s *Session, fields []string) {
	if len(fields) != 3 {
		s.Send("Use: create <user> <password>")
		return
	}
	acct, err := gm.Accounts.Create(fields[1], fields[2], "")
	if err != nil {
		if errors.Is(err, account.ErrExists) {
			s.Send("That user name is taken.")
			return
		}
		gm.Logf("[%d] create account %q: %v", s.ID, fields[1], err)
		s.Send("Account creation failed.")
		return
	}
	gm.Logf("[%d] created account %s", s.ID, acct.Login)
	if err := gm.Sessions.Authenticate(s, acct); err != nil {
		gm.Logf("[%d] authenticate: %v", s.ID, err)
		s.Send("Login failed; try again later.")
		return
	}
	s.Send("Account created. Welcome, " + acct.Login + ".")
	if motd := gm.Texts.Motd(); motd != "" {
		s.Send(motd)
	}
	s.Send(`Use "connect character <name>" to enter the world.`)
}
