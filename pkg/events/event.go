// Package events carries structured world events from game code to
// session transports and global observers.
package events

import "github.com/gaia-mud/gaia/pkg/world"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // Raw text (universal fallback)
	EvMessage                     // Object-to-object message (send operator)
	EvDiagnostic                  // G failure diagnostic line
	EvConnect                     // Session connected
	EvDisconnect                  // Session disconnected
	EvEmbody                      // Session embodied a character
	EvWho                         // WHO data
	EvPrompt                      // Prompt/status update
	EvTick                        // Scheduler tick notice
)

func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvMessage:
		return "message"
	case EvDiagnostic:
		return "diagnostic"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvEmbody:
		return "embody"
	case EvWho:
		return "who"
	case EvPrompt:
		return "prompt"
	case EvTick:
		return "tick"
	default:
		return "unknown"
	}
}

// Event is a structured event flowing through the bus. Transports
// decide how to encode it: telnet renders Text, WebSocket clients get
// the structured form.
type Event struct {
	Type    EventType
	Target  string      // Recipient object ID ("" for broadcast)
	Source  string      // Object that generated the event
	Payload world.Value // Message payload (EvMessage)
	Text    string      // Pre-formatted text (telnet uses this)
	Data    map[string]any
}
