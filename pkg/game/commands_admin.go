package game

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gaia-mud/gaia/pkg/g"
	"github.com/gaia-mud/gaia/pkg/parse"
	"github.com/gaia-mud/gaia/pkg/world"
)

func registerAdminCommands(t *parse.Table) {
	t.Register(
		"create", "delete", "reload", "shutdown",
		"password", "roles", "eval", "who", "stats", "recall",
	)
}

// runAdmin executes an Admin-mode recognition. The recognizer only
// fires for registered commands; the admin check here guards against a
// demoted account with a live session.
func (gm *Game) runAdmin(s *Session, rec *parse.Recognition) {
	if !s.IsAdmin() {
		s.Send("Permission denied.")
		return
	}
	switch rec.Verb {
	case "create":
		gm.adminCreate(s, rec.Args)
	case "delete":
		gm.adminDelete(s, rec.Args)
	case "reload":
		gm.adminReload(s, rec.Args)
	case "shutdown":
		s.Send("Shutting down.")
		gm.Logf("[%d] shutdown requested by %s", s.ID, s.Account().Login)
		gm.RequestShutdown()
	case "password":
		gm.adminPassword(s, rec.Args)
	case "roles":
		gm.adminRoles(s, rec.Args)
	case "eval":
		gm.adminEval(s, rec)
	case "who":
		s.Send(gm.FormatWho())
	case "stats":
		s.Send(gm.formatStats())
	case "recall":
		gm.adminRecall(s, rec.Args)
	default:
		s.Send(dontUnderstand)
	}
}

// adminCreate is /create <name> [parent ...].
func (gm *Game) adminCreate(s *Session, args []string) {
	if len(args) < 1 {
		s.Send("Use: /create <name> [parent ...]")
		return
	}
	parents := args[1:]
	if len(parents) == 0 {
		parents = []string{world.RootID}
	}
	obj := world.NewObject(NewObjectID(), parents...)
	obj.Name = args[0]
	if acct := s.Account(); acct != nil {
		obj.OwnerID = acct.ID
	}
	if err := gm.Cache.Put(obj); err != nil {
		s.Send("Create failed: " + err.Error())
		return
	}
	s.Send("Created " + obj.ID + " (" + obj.Name + ").")
}

// adminDelete is /delete <ref>.
func (gm *Game) adminDelete(s *Session, args []string) {
	if len(args) != 1 {
		s.Send("Use: /delete <ref>")
		return
	}
	if err := gm.Cache.Delete(args[0]); err != nil {
		s.Send("Delete failed: " + err.Error())
		return
	}
	s.Send("Deleted " + args[0] + ".")
}

// adminReload is /reload <path> <ref> [attr]: reads G source from the
// source directory onto an attribute.
func (gm *Game) adminReload(s *Session, args []string) {
	if len(args) != 2 && len(args) != 3 {
		s.Send("Use: /reload <path> <ref> [attr]")
		return
	}
	src, err := gm.readSource(args[0])
	if err != nil {
		s.Send("Reload failed: " + err.Error())
		return
	}
	if _, err := g.ParseProgram(src); err != nil {
		s.Send("Reload failed: " + err.Error())
		return
	}
	attr := "run"
	if len(args) == 3 {
		attr = args[2]
	}
	if err := gm.Cache.SetAttribute(args[1], attr, src); err != nil {
		s.Send("Reload failed: " + err.Error())
		return
	}
	s.Send(fmt.Sprintf("Loaded %s onto %s.%s.", args[0], args[1], attr))
}

// adminPassword is /password <user> <newpassword>.
func (gm *Game) adminPassword(s *Session, args []string) {
	if len(args) != 2 {
		s.Send("Use: /password <user> <newpassword>")
		return
	}
	if err := gm.Accounts.SetPassword(args[0], args[1]); err != nil {
		s.Send("Password change failed: " + err.Error())
		return
	}
	s.Send("Password changed for " + args[0] + ".")
}

// adminRoles is /roles <user> [+role ...] [-role ...].
func (gm *Game) adminRoles(s *Session, args []string) {
	if len(args) < 1 {
		s.Send("Use: /roles <user> [+role] [-role]")
		return
	}
	var add, remove []string
	for _, a := range args[1:] {
		switch {
		case strings.HasPrefix(a, "+"):
			add = append(add, a[1:])
		case strings.HasPrefix(a, "-"):
			remove = append(remove, a[1:])
		default:
			s.Send("Roles are given as +role or -role.")
			return
		}
	}
	acct, err := gm.Accounts.EditRoles(args[0], add, remove)
	if err != nil {
		s.Send("Role edit failed: " + err.Error())
		return
	}
	s.Send(fmt.Sprintf("%s now has roles: %s", acct.Login, strings.Join(acct.Roles, ", ")))
}

// adminEval is /eval <expr>: runs G as the session's actor and prints
// the result or the diagnostic.
func (gm *Game) adminEval(s *Session, rec *parse.Recognition) {
	src := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(rec.Raw, "/"), "eval"))
	if src == "" {
		s.Send("Use: /eval <expression>")
		return
	}
	ctx := gm.NewContext(s.ActorID())
	s.BeginInvocation(ctx.Inv)
	defer s.EndInvocation()

	result, err := g.EvalSource(ctx, src)
	if err != nil {
		if f, ok := g.AsFailure(err); ok {
			s.Send(f.Diagnostic())
		} else {
			s.Send("Eval failed: " + err.Error())
		}
		return
	}
	s.Send("=> " + world.ToString(result))
}

// adminRecall is /recall [n]: replays recent output for the session's
// actor from the scrollback store.
func (gm *Game) adminRecall(s *Session, args []string) {
	if gm.Scrollback == nil {
		s.Send("Scrollback is not configured.")
		return
	}
	limit := 20
	if len(args) == 1 {
		fmt.Sscanf(args[0], "%d", &limit)
	}
	rows, err := gm.Scrollback.Recent(s.ActorID(), limit)
	if err != nil {
		s.Send("Recall failed: " + err.Error())
		return
	}
	if len(rows) == 0 {
		s.Send("Nothing to recall.")
		return
	}
	for _, r := range rows {
		s.Send(fmt.Sprintf("[%s] %s", r.At.Format("15:04:05"), r.Text))
	}
}

// formatStats renders a one-screen status summary.
func (gm *Game) formatStats() string {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	var b strings.Builder
	fmt.Fprintf(&b, "Uptime:    %s\n", time.Since(gm.StartTime).Round(time.Second))
	fmt.Fprintf(&b, "Sessions:  %d\n", gm.Sessions.Count())
	fmt.Fprintf(&b, "Cache:     %d objects, %d dirty\n", gm.Cache.Size(), gm.Cache.DirtyCount())
	fmt.Fprintf(&b, "Tick set:  %d objects\n", len(gm.Cache.TickSet()))
	fmt.Fprintf(&b, "Heap:      %d KiB, %d goroutines", mem.HeapAlloc/1024, runtime.NumGoroutine())
	return b.String()
}
