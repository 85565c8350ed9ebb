package client

import (
	"time"

	"chatline/models"
)

// provisionalIDFloor is the bottom of the id range used for not-yet-confirmed
// local sends. Server ids are small autoincrement integers; anything at or
// above this floor is a client-assigned placeholder.
const provisionalIDFloor int64 = 1 << 48

// IsProvisionalID reports whether id was assigned locally at send time.
func IsProvisionalID(id int64) bool {
	return id >= provisionalIDFloor
}

// Transcript is the ordered message list for one conversation. It is owned
// by the view's event loop and mutated only through Install,
// AppendOptimistic and Reconcile, which together maintain two invariants:
// no two entries share an id once a reconcile returns, and a confirmed
// message replaces its optimistic placeholder instead of duplicating it.
type Transcript struct {
	conversationID int64
	selfID         int64
	msgs           []models.Message
	processed      map[int64]struct{} // event ids already reconciled
	pendingSeq     int64
}

func NewTranscript(conversationID, selfID int64) *Transcript {
	return &Transcript{
		conversationID: conversationID,
		selfID:         selfID,
		processed:      make(map[int64]struct{}),
	}
}

func (t *Transcript) ConversationID() int64 {
	return t.conversationID
}

func (t *Transcript) Len() int {
	return len(t.msgs)
}

// Messages returns a copy of the transcript in conversational order.
func (t *Transcript) Messages() []models.Message {
	out := make([]models.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Install replaces the transcript with freshly fetched history. Optimistic
// entries and the processed-event set are dropped with the old content.
func (t *Transcript) Install(history []models.Message) {
	t.msgs = make([]models.Message, len(history))
	copy(t.msgs, history)
	t.processed = make(map[int64]struct{})
	for i := range t.msgs {
		if t.msgs[i].SenderID == t.selfID {
			t.msgs[i].IsMine = true
		}
	}
}

// nextProvisionalID derives a placeholder id from the wall clock, offset
// into the provisional range. The per-transcript counter keeps ids distinct
// and increasing even when two sends land on the same clock tick.
func (t *Transcript) nextProvisionalID(now time.Time) int64 {
	t.pendingSeq++
	return provisionalIDFloor + now.UnixMilli() + t.pendingSeq
}

// AppendOptimistic appends a locally-authored message before the server has
// seen it, so the sender gets immediate feedback.
func (t *Transcript) AppendOptimistic(content string, now time.Time) models.Message {
	m := models.Message{
		ID:             t.nextProvisionalID(now),
		ConversationID: t.conversationID,
		SenderID:       t.selfID,
		Content:        content,
		CreatedAt:      models.Time{Time: now.UTC()},
		Status:         models.StateSent,
		IsMine:         true,
	}
	t.msgs = append(t.msgs, m)
	return m
}

// Reconcile merges one server-confirmed message event. It is idempotent:
// redelivery of an already-processed event id is a no-op, as is an event for
// another conversation or one whose id is already in the transcript. A
// locally-authored event replaces its matching optimistic entry in place
// (correlated by content, since the transport does not echo the provisional
// id); anything else appends. It reports whether the transcript changed.
func (t *Transcript) Reconcile(ev models.Message) bool {
	if ev.ConversationID != t.conversationID {
		return false
	}
	if _, done := t.processed[ev.ID]; done {
		return false
	}

	// The id guard runs before replacement: a redelivery whose id already
	// settled (say, via Install, which resets the processed set) must not
	// consume a pending optimistic entry and duplicate the id.
	for _, m := range t.msgs {
		if m.ID == ev.ID {
			t.processed[ev.ID] = struct{}{}
			return false
		}
	}

	ev.IsMine = ev.SenderID == t.selfID
	if ev.Status == "" {
		ev.Status = models.StateSent
	}

	if ev.IsMine {
		for i := range t.msgs {
			m := &t.msgs[i]
			if IsProvisionalID(m.ID) && m.SenderID == t.selfID && m.Content == ev.Content {
				t.msgs[i] = ev
				t.processed[ev.ID] = struct{}{}
				return true
			}
		}
	}

	t.msgs = append(t.msgs, ev)
	t.processed[ev.ID] = struct{}{}
	return true
}
