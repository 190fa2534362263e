package parse

import "strings"

// UserRecognizer matches session-level keywords (WHO, QUIT, CONNECT,
// COMMANDS, ...). The keyword is case-insensitive; arguments keep the
// case the player typed.
type UserRecognizer struct {
	Keywords *Table
}

// NewUserRecognizer builds the recognizer over a keyword table.
func NewUserRecognizer(keywords *Table) *UserRecognizer {
	return &UserRecognizer{Keywords: keywords}
}

func (r *UserRecognizer) Name() string { return "user" }

func (r *UserRecognizer) Recognize(raw string) (*Recognition, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, nil
	}
	if !r.Keywords.Has(fields[0]) {
		return nil, nil
	}
	return &Recognition{
		Mode: ModeUser,
		Verb: strings.ToLower(fields[0]),
		Args: fields[1:],
		Raw:  raw,
	}, nil
}
