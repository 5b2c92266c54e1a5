// Package transcript reconciles streaming transcription events into an
// ordered list of display messages.
package transcript

import "fmt"

// State represents the lifecycle state of a reconciled message.
type State int

const (
	// StatePartial - text is tentative and may still be refined.
	StatePartial State = iota
	// StateFinal - the upstream has marked the segment final.
	StateFinal
	// StateRevised - text changed after the segment was final.
	StateRevised
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePartial:
		return "PARTIAL"
	case StateFinal:
		return "FINAL"
	case StateRevised:
		return "REVISED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// HasBeenFinal returns true once the segment has been marked final at least once.
func (s State) HasBeenFinal() bool {
	return s == StateFinal || s == StateRevised
}

// next returns the state after applying an update with the given final flag.
//
//	PARTIAL ──isFinal──→ FINAL ──any later change──→ REVISED
//	   └── !isFinal ──→ PARTIAL
func (s State) next(isFinal, changed bool) State {
	switch s {
	case StatePartial:
		if isFinal {
			return StateFinal
		}
		return StatePartial
	case StateFinal:
		if changed {
			return StateRevised
		}
		return StateFinal
	default:
		return s
	}
}

// Outcome describes what an ingested segment did to the message list.
type Outcome int

const (
	// OutcomeDropped - the event had no text or no segment id.
	OutcomeDropped Outcome = iota
	// OutcomeCreated - a new message was appended.
	OutcomeCreated
	// OutcomeUpdated - an existing message changed in place.
	OutcomeUpdated
	// OutcomeUnchanged - an existing message already held these values.
	OutcomeUnchanged
	// OutcomeIgnored - a revision of a final message was refused.
	OutcomeIgnored
)

// String returns the label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("unknown(%d)", o)
	}
}

// Changed reports whether the message list was modified.
func (o Outcome) Changed() bool {
	return o == OutcomeCreated || o == OutcomeUpdated
}
