package g

import "fmt"

// FailKind classifies a G failure.
type FailKind int

const (
	FailParse FailKind = iota
	FailUnresolvedCallee
	FailTypeCoercion
	FailPermission
	FailNotFound
	FailStoreConflict
	FailTimeout
	FailDepthLimit
	FailTransport
	FailProtocol
)

func (k FailKind) String() string {
	switch k {
	case FailParse:
		return "parse failure"
	case FailUnresolvedCallee:
		return "unresolved callee"
	case FailTypeCoercion:
		return "type coercion"
	case FailPermission:
		return "permission denied"
	case FailNotFound:
		return "not found"
	case FailStoreConflict:
		return "store conflict"
	case FailTimeout:
		return "timeout"
	case FailDepthLimit:
		return "depth limit"
	case FailTransport:
		return "transport"
	case FailProtocol:
		return "protocol"
	default:
		return "failure"
	}
}

// Failure is a G-level error: a kind, a human-readable reason, and the
// source text of the failing expression. It aborts the current top-level
// invocation and is reported to the actor as a one-line diagnostic.
type Failure struct {
	Kind   FailKind
	Reason string
	Span   string
}

func (f *Failure) Error() string {
	if f.Span != "" {
		return fmt.Sprintf("%s: %s (in %s)", f.Kind, f.Reason, f.Span)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

// Diagnostic renders the single-line form delivered to the actor.
func (f *Failure) Diagnostic() string {
	if f.Span != "" {
		return fmt.Sprintf("G error: %s: %s in %s", f.Kind, f.Reason, f.Span)
	}
	return fmt.Sprintf("G error: %s: %s", f.Kind, f.Reason)
}

// failf builds a Failure for the given expression span.
func failf(kind FailKind, span Node, format string, args ...any) *Failure {
	spanText := ""
	if span != nil {
		spanText = span.String()
	}
	return &Failure{Kind: kind, Reason: fmt.Sprintf(format, args...), Span: spanText}
}

// AsFailure extracts a *Failure from an error chain, wrapping foreign
// errors as NotFound/StoreConflict style failures is left to callers.
func AsFailure(err error) (*Failure, bool) {
	if err == nil {
		return nil, false
	}
	f, ok := err.(*Failure)
	return f, ok
}

// returnSignal unwinds the innermost attribute invocation carrying the
// value of a `return` form. It is control flow, not a failure.
type returnSignal struct {
	value any
}

func (r *returnSignal) Error() string { return "return outside attribute invocation" }
