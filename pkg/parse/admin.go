package parse

import "strings"

// AdminRecognizer claims lines beginning with '/'. The first token
// after the slash is the command, matched case-insensitively against
// the registered table; the rest of the line becomes arguments.
type AdminRecognizer struct {
	Commands *Table
}

// NewAdminRecognizer builds the recognizer over a command table.
func NewAdminRecognizer(commands *Table) *AdminRecognizer {
	return &AdminRecognizer{Commands: commands}
}

func (r *AdminRecognizer) Name() string { return "admin" }

func (r *AdminRecognizer) Recognize(raw string) (*Recognition, error) {
	line := strings.TrimSpace(raw)
	if !strings.HasPrefix(line, "/") {
		return nil, nil
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return nil, nil
	}
	if !r.Commands.Has(fields[0]) {
		return nil, nil
	}
	return &Recognition{
		Mode: ModeAdmin,
		Verb: strings.ToLower(fields[0]),
		Args: fields[1:],
		Raw:  raw,
	}, nil
}
