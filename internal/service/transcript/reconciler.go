package transcript

import (
	"time"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/logging"
)

// Options configures a Reconciler.
type Options struct {
	// UserAliases are participant id prefixes treated as the local user.
	UserAliases []string

	// LockFinals refuses text changes to segments that were already final.
	// The refused event is logged and has no effect.
	LockFinals bool

	// Now supplies message creation timestamps. Defaults to time.Now.
	Now func() time.Time

	// ConversationID tags per-segment log lines.
	ConversationID string
}

// Result is the effect of one Ingest call.
type Result struct {
	Outcome  Outcome
	Position int // index in the message list, -1 when dropped
	Message  models.DisplayMessage
	State    State // lifecycle state after the event, unset when dropped
}

type entry struct {
	msg   models.DisplayMessage
	state State
}

// Reconciler keeps one DisplayMessage per distinct segment id, in the order
// the ids were first seen. Messages are created on first sight and only
// mutated afterwards; they are never removed or reordered.
//
// A Reconciler is not safe for concurrent use. Callers serialize ingestion
// (see conversation.Hub).
type Reconciler struct {
	roles      RoleResolver
	lockFinals bool
	now        func() time.Time
	convID     string

	entries []*entry
	index   map[string]int
}

// NewReconciler creates an empty reconciler.
func NewReconciler(opts Options) *Reconciler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		roles:      NewRoleResolver(opts.UserAliases),
		lockFinals: opts.LockFinals,
		now:        now,
		convID:     opts.ConversationID,
		index:      make(map[string]int),
	}
}

// Accepts reports whether a segment can affect a message list. Segments
// without an id or text are dropped.
func Accepts(seg models.TranscriptSegment) bool {
	return seg.SegmentID != "" && seg.Text != ""
}

// Ingest applies one transcription event.
func (r *Reconciler) Ingest(seg models.TranscriptSegment) Result {
	if !Accepts(seg) {
		return Result{Outcome: OutcomeDropped, Position: -1}
	}

	pos, ok := r.index[seg.SegmentID]
	if !ok {
		state := StatePartial
		if seg.IsFinal {
			state = StateFinal
		}
		e := &entry{
			msg: models.DisplayMessage{
				ID:        seg.SegmentID,
				Role:      r.roles.Resolve(seg),
				Text:      seg.Text,
				Timestamp: r.now().UnixMilli(),
				IsFinal:   seg.IsFinal,
			},
			state: state,
		}
		r.entries = append(r.entries, e)
		pos = len(r.entries) - 1
		r.index[seg.SegmentID] = pos
		return Result{Outcome: OutcomeCreated, Position: pos, Message: e.msg, State: e.state}
	}

	e := r.entries[pos]
	if e.msg.Text == seg.Text && e.msg.IsFinal == seg.IsFinal {
		return Result{Outcome: OutcomeUnchanged, Position: pos, Message: e.msg, State: e.state}
	}

	if e.state.HasBeenFinal() {
		l := logging.WithSegment(r.convID, seg.SegmentID)
		if r.lockFinals {
			l.Warn().
				Str("state", e.state.String()).
				Msg("Ignoring revision of final segment")
			return Result{Outcome: OutcomeIgnored, Position: pos, Message: e.msg, State: e.state}
		}
		l.Debug().
			Bool("isFinal", seg.IsFinal).
			Msg("Applying revision to final segment")
	}

	e.state = e.state.next(seg.IsFinal, true)
	e.msg.Text = seg.Text
	e.msg.IsFinal = seg.IsFinal
	return Result{Outcome: OutcomeUpdated, Position: pos, Message: e.msg, State: e.state}
}

// Messages returns a copy of the ordered message list.
func (r *Reconciler) Messages() []models.DisplayMessage {
	out := make([]models.DisplayMessage, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.msg
	}
	return out
}

// Len returns the number of messages.
func (r *Reconciler) Len() int {
	return len(r.entries)
}
