package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gaia-mud/gaia/pkg/events"
	"github.com/gaia-mud/gaia/pkg/g"
	"github.com/gaia-mud/gaia/pkg/parse"
	"github.com/gaia-mud/gaia/pkg/world"
)

const dontUnderstand = "I don't understand that."

// Dispatch runs one input line through the session's recognizer stack
// and binds the recognition to a handler.
func (gm *Game) Dispatch(s *Session, line string) {
	s.touch()
	if gm.Metrics != nil {
		gm.Metrics.CommandProcessed()
	}

	stack := gm.stackFor(s)
	rec, err := stack.Recognize(line)
	if err != nil {
		var amb *parse.AmbiguityError
		if errors.As(err, &amb) {
			s.Send(formatAmbiguity(amb))
			return
		}
		s.Send(dontUnderstand)
		return
	}
	if rec == nil {
		s.Send(dontUnderstand)
		return
	}

	gm.Debugf("[%d] %s recognized %q as %s", s.ID, rec.Mode, line, rec.Verb)
	switch rec.Mode {
	case parse.ModeAdmin:
		gm.runAdmin(s, rec)
	case parse.ModeUser:
		gm.runUser(s, rec)
	case parse.ModeGame:
		gm.runGame(s, rec)
	}
}

func formatAmbiguity(amb *parse.AmbiguityError) string {
	names := make([]string, len(amb.Candidates))
	for i, c := range amb.Candidates {
		names[i] = c.Name
	}
	return fmt.Sprintf("Which %q do you mean: %s?", amb.Phrase, strings.Join(names, ", "))
}

// stackFor assembles the recognizer pipeline from the session's state.
func (gm *Game) stackFor(s *Session) parse.Stack {
	admin := s.IsAdmin()
	embodied := s.State() == StateEmbodied

	a := parse.NewAdminRecognizer(gm.AdminCommands)
	u := parse.NewUserRecognizer(gm.UserKeywords)
	var game parse.Recognizer
	if embodied {
		game = &parse.GameRecognizer{
			Dict:    gm.Dict,
			Recency: gm.Recency,
			Actor:   s.ActorID(),
			Visible: func() []parse.Candidate { return gm.visibleTo(s.ActorID()) },
		}
	}
	return parse.StackFor(admin, embodied, a, u, game)
}

// visibleTo collects noun-resolution candidates: the contents of the
// actor's location, the actor's inventory, and the actor itself.
func (gm *Game) visibleTo(actorID string) []parse.Candidate {
	var out []parse.Candidate
	actor, err := gm.Cache.Get(actorID)
	if err != nil {
		return nil
	}

	appendObj := func(id string, inv bool) {
		obj, err := gm.Cache.Get(id)
		if err != nil {
			return
		}
		out = append(out, parse.Candidate{ID: id, Name: obj.Name, InInventory: inv})
	}

	if actor.LocationID != "" {
		if room, err := gm.Cache.Get(actor.LocationID); err == nil {
			for _, id := range room.ContentIDs {
				if id != actorID {
					appendObj(id, false)
				}
			}
			out = append(out, parse.Candidate{ID: room.ID, Name: room.Name})
		}
	}
	for _, id := range actor.ContentIDs {
		appendObj(id, true)
	}
	out = append(out, parse.Candidate{ID: actor.ID, Name: actor.Name})
	return out
}

// runGame binds a Game-mode recognition: search cmd_<verb> on the
// direct object, the actor's location, the actor, the transient user
// object, then the global #commands object. First match wins.
func (gm *Game) runGame(s *Session, rec *parse.Recognition) {
	actorID := s.ActorID()
	attr := "cmd_" + gm.CanonicalVerb(rec.Verb)

	var order []string
	if id, ok := rec.Resolved["direct"]; ok {
		order = append(order, id)
	}
	if actor, err := gm.Cache.Get(actorID); err == nil && actor.LocationID != "" {
		order = append(order, actor.LocationID)
	}
	order = append(order, actorID)
	if userID := s.UserID(); userID != "" && userID != actorID {
		order = append(order, userID)
	}
	order = append(order, CommandsID)

	for _, holder := range order {
		v, ok, err := gm.Cache.GetAttribute(holder, attr)
		if err != nil || !ok {
			continue
		}
		src, isString := v.(string)
		if !isString {
			continue
		}
		gm.invokeCommand(s, holder, actorID, src, rec)
		return
	}
	s.Send(dontUnderstand)
}

// invokeCommand runs handler source under a fresh invocation. The
// executor is the object the handler was found on; a non-null string
// result is echoed to the actor.
func (gm *Game) invokeCommand(s *Session, executor, actorID, src string, rec *parse.Recognition) {
	ctx := gm.NewContext(actorID)
	ctx.Executor = executor
	ctx.This = executor

	s.BeginInvocation(ctx.Inv)
	defer s.EndInvocation()

	args := make([]world.Value, 0, len(rec.Args)+2)
	for _, a := range rec.Args {
		args = append(args, a)
	}
	if id, ok := rec.Resolved["direct"]; ok {
		args = append(args, world.Ref(id))
	}
	if id, ok := rec.Resolved["indirect"]; ok {
		args = append(args, world.Ref(id))
	}

	result, err := g.Invoke(ctx, src, args)
	if err != nil {
		gm.reportFailure(s, actorID, err)
		return
	}
	if str, ok := result.(string); ok && str != "" {
		gm.Bus.Emit(events.Event{
			Type:   events.EvText,
			Target: actorID,
			Source: executor,
			Text:   str,
		})
	}
}

// reportFailure delivers a G failure as a one-line diagnostic and logs
// it.
func (gm *Game) reportFailure(s *Session, actorID string, err error) {
	if f, ok := g.AsFailure(err); ok {
		s.Send(f.Diagnostic())
		gm.Logf("[%d] g failure for %s: %v", s.ID, actorID, f)
		return
	}
	s.Send("Something went wrong.")
	gm.Logf("[%d] command error for %s: %v", s.ID, actorID, err)
}
