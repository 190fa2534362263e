package game

import (
	"sort"
	"strings"

	"github.com/gaia-mud/gaia/pkg/g"
	"github.com/gaia-mud/gaia/pkg/parse"
)

func registerUserKeywords(t *parse.Table) {
	t.Register("WHO", "QUIT", "CONNECT", "COMMANDS")
}

// runUser executes a User-mode recognition against the in-engine
// handler set.
func (gm *Game) runUser(s *Session, rec *parse.Recognition) {
	switch rec.Verb {
	case "who":
		s.Send(gm.FormatWho())
	case "quit":
		s.Send(gm.Texts.Quit())
		s.Close()
	case "connect":
		gm.userConnect(s, rec.Args)
	case "commands":
		s.Send(gm.formatCommands(s))
	default:
		s.Send(dontUnderstand)
	}
}

// userConnect handles `connect character <name>` for authenticated
// sessions.
func (gm *Game) userConnect(s *Session, args []string) {
	if len(args) != 2 || !strings.EqualFold(args[0], "character") {
		s.Send("Use: connect character <name>")
		return
	}
	acct := s.Account()
	if acct == nil {
		s.Send("You are not logged in.")
		return
	}
	charID, err := gm.Sessions.FindCharacter(acct, args[1])
	if err != nil {
		s.Send("You have no character named " + args[1] + ".")
		return
	}
	gm.Sessions.Embody(s, charID)
	s.Send("You are now " + args[1] + ".")
}

// formatCommands lists what the session can type right now.
func (gm *Game) formatCommands(s *Session) string {
	var b strings.Builder
	b.WriteString("User commands: ")
	names := gm.UserKeywords.Names()
	sort.Strings(names)
	b.WriteString(strings.Join(names, " "))
	if s.IsAdmin() {
		admin := gm.AdminCommands.Names()
		sort.Strings(admin)
		b.WriteString("\nAdmin commands: /")
		b.WriteString(strings.Join(admin, " /"))
	}
	if s.State() == StateEmbodied {
		b.WriteString("\nG standard library: ")
		b.WriteString(strings.Join(g.BuiltinNames(), " "))
	}
	return b.String()
}
