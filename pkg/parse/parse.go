// Package parse turns raw session input into recognized commands. A
// session's state selects an ordered stack of recognizers; the first
// one to claim the line wins.
package parse

import "fmt"

// Mode identifies which recognizer produced a recognition.
type Mode int

const (
	ModeAdmin Mode = iota
	ModeUser
	ModeGame
)

func (m Mode) String() string {
	switch m {
	case ModeAdmin:
		return "admin"
	case ModeUser:
		return "user"
	case ModeGame:
		return "game"
	default:
		return "unknown"
	}
}

// Recognition is a successfully parsed input line.
type Recognition struct {
	Mode Mode
	Verb string
	Args []string
	Raw  string
	// Resolved maps grammatical roles ("direct", "indirect") to object
	// IDs for Game-mode recognitions.
	Resolved map[string]string
}

// AmbiguityError reports that a noun phrase matched several objects
// even after tie-breaking. The session should ask the player to choose.
type AmbiguityError struct {
	Phrase     string
	Candidates []Candidate
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("parse: %q is ambiguous (%d candidates)", e.Phrase, len(e.Candidates))
}

// Candidate is one visible object considered during noun resolution.
type Candidate struct {
	ID   string
	Name string
	// InInventory marks objects carried by the actor; they outrank room
	// contents during tie-breaking.
	InInventory bool
}

// Recognizer tries to claim a raw input line. A nil recognition with a
// nil error means the line is not in this recognizer's language.
type Recognizer interface {
	Name() string
	Recognize(raw string) (*Recognition, error)
}

// Stack is an ordered recognizer pipeline.
type Stack []Recognizer

// StackFor builds the pipeline for a session's state.
func StackFor(admin, embodied bool, a, u, g Recognizer) Stack {
	var s Stack
	if admin {
		s = append(s, a)
	}
	s = append(s, u)
	if embodied && g != nil {
		s = append(s, g)
	}
	return s
}

// Recognize runs the stack in order. A nil recognition with nil error
// means no recognizer claimed the line.
func (s Stack) Recognize(raw string) (*Recognition, error) {
	for _, r := range s {
		rec, err := r.Recognize(raw)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}
