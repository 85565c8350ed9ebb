package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatline/models"
)

type fakeHistory struct {
	mu    sync.Mutex
	msgs  map[int64][]models.Message
	errs  map[int64]error
	gates map[int64]chan struct{} // fetch blocks until the gate closes
}

func (f *fakeHistory) RoomMessages(ctx context.Context, roomID int64, limit int, beforeID int64) ([]models.Message, error) {
	f.mu.Lock()
	gate := f.gates[roomID]
	msgs := f.msgs[roomID]
	err := f.errs[roomID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return msgs, err
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	rooms []int64
	err   error
}

func (f *fakeSender) Send(roomID int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, roomID)
	f.sent = append(f.sent, content)
	return f.err
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAssist struct {
	suggestions []string
	summary     string
	err         error
}

func (f *fakeAssist) SuggestReplies(ctx context.Context, recent []models.Message, selfID int64) ([]string, error) {
	return f.suggestions, f.err
}

func (f *fakeAssist) Summarize(ctx context.Context, msgs []models.Message, selfID int64) (string, error) {
	return f.summary, f.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func conv(id int64) models.Conversation {
	return models.Conversation{ID: id, ChatType: models.ChatTypeDirect}
}

func newTestView(fh *fakeHistory, fs *fakeSender, fa *fakeAssist) *View {
	if fh == nil {
		fh = &fakeHistory{}
	}
	if fs == nil {
		fs = &fakeSender{}
	}
	if fa == nil {
		fa = &fakeAssist{}
	}
	return NewView(testSelf, fh, fs, fa, 50, nil)
}

func TestActivateLoadsHistory(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		42: {confirmed(1, 42, 3, "hi")},
	}}
	v := newTestView(fh, nil, nil)
	defer v.Close()

	v.Activate(conv(42))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })

	s := v.Snapshot()
	if s.Messages[0].ID != 1 || s.Conversation.ID != 42 {
		t.Fatalf("unexpected snapshot after load: %+v", s)
	}
}

// A history response that resolves after another conversation became active
// must not touch the newer conversation's transcript.
func TestStaleHistoryDiscarded(t *testing.T) {
	gateA := make(chan struct{})
	fh := &fakeHistory{
		msgs: map[int64][]models.Message{
			1: {confirmed(10, 1, 3, "from A")},
			2: {confirmed(20, 2, 3, "from B")},
		},
		gates: map[int64]chan struct{}{1: gateA},
	}
	v := newTestView(fh, nil, nil)
	defer v.Close()

	v.Activate(conv(1)) // fetch for A parks on the gate
	v.Activate(conv(2))
	waitFor(t, func() bool {
		s := v.Snapshot()
		return len(s.Messages) == 1 && s.Messages[0].ID == 20
	})

	close(gateA) // stale response for A lands now
	time.Sleep(50 * time.Millisecond)

	s := v.Snapshot()
	if len(s.Messages) != 1 || s.Messages[0].ID != 20 {
		t.Fatalf("stale history overwrote the active transcript: %+v", s.Messages)
	}
}

func TestHistoryFailureLeavesTranscriptEmpty(t *testing.T) {
	fh := &fakeHistory{errs: map[int64]error{42: errors.New("boom")}}
	fs := &fakeSender{}
	v := newTestView(fh, fs, nil)
	defer v.Close()

	v.Activate(conv(42))
	time.Sleep(50 * time.Millisecond)

	if n := len(v.Snapshot().Messages); n != 0 {
		t.Fatalf("expected empty transcript after failed load, got %d entries", n)
	}

	// the failure is non-fatal: composing still works
	v.Compose("still here")
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })
}

func TestComposeDispatchesAndAppends(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		42: {confirmed(1, 42, 3, "hi")},
	}}
	fs := &fakeSender{}
	v := newTestView(fh, fs, nil)
	defer v.Close()

	v.Activate(conv(42))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })

	v.Compose("  yo  ")
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 2 })

	m := v.Snapshot().Messages[1]
	if m.Content != "yo" || !m.IsMine || !IsProvisionalID(m.ID) {
		t.Fatalf("unexpected optimistic entry: %+v", m)
	}
	if m.Status != models.StateSent {
		t.Fatalf("expected status sent, got %q", m.Status)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.sent) != 1 || fs.sent[0] != "yo" || fs.rooms[0] != 42 {
		t.Fatalf("sender saw %v in rooms %v", fs.sent, fs.rooms)
	}
}

func TestComposeDropsEmptyInput(t *testing.T) {
	fs := &fakeSender{}
	v := newTestView(nil, fs, nil)
	defer v.Close()

	v.Activate(conv(42))
	time.Sleep(20 * time.Millisecond)
	v.Compose("   ")
	time.Sleep(20 * time.Millisecond)

	if len(v.Snapshot().Messages) != 0 || fs.sentCount() != 0 {
		t.Fatalf("blank input must not dispatch or append")
	}
}

// The optimistic append must not depend on transport success.
func TestComposeAppendsDespiteSendFailure(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		42: {confirmed(1, 42, 3, "hi")},
	}}
	fs := &fakeSender{err: errors.New("socket closed")}
	v := newTestView(fh, fs, nil)
	defer v.Close()

	v.Activate(conv(42))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })

	v.Compose("yo")
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 2 })
}

func TestPushConfirmationReplacesOptimistic(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		42: {confirmed(1, 42, 3, "hi")},
	}}
	v := newTestView(fh, nil, nil)
	defer v.Close()

	v.Activate(conv(42))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })

	v.Compose("yo")
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 2 })

	v.HandlePush(confirmed(99, 42, testSelf, "yo"))
	waitFor(t, func() bool {
		s := v.Snapshot()
		return len(s.Messages) == 2 && s.Messages[1].ID == 99
	})
}

// An event for conversation C while D is active leaves D's transcript alone.
func TestForeignConversationEventIgnored(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		4: {confirmed(1, 4, 3, "hi")},
	}}
	v := newTestView(fh, nil, nil)
	defer v.Close()

	v.Activate(conv(4))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })

	v.HandlePush(confirmed(50, 3, 3, "other room"))
	time.Sleep(20 * time.Millisecond)

	s := v.Snapshot()
	if len(s.Messages) != 1 || s.Messages[0].ID != 1 {
		t.Fatalf("foreign-room event mutated the active transcript: %+v", s.Messages)
	}
}

func TestSuggestionsAppearInSnapshot(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		42: {confirmed(1, 42, 3, "hi")},
	}}
	fa := &fakeAssist{suggestions: []string{"ok", "sure"}}
	v := newTestView(fh, nil, fa)
	defer v.Close()

	v.Activate(conv(42))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })

	v.RequestSuggestions()
	waitFor(t, func() bool { return len(v.Snapshot().Suggestions) == 2 })
}

func TestSummaryFallbackOnAssistFailure(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		42: {confirmed(1, 42, 3, "hi")},
	}}
	fa := &fakeAssist{err: errors.New("model offline")}
	v := newTestView(fh, nil, fa)
	defer v.Close()

	v.Activate(conv(42))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })

	v.RequestSummary()
	waitFor(t, func() bool { return v.Snapshot().Summary == SummaryFallback })

	if len(v.Snapshot().Messages) != 1 {
		t.Fatalf("assist failure must not touch the transcript")
	}
}

// Switching conversations resets AI-derived state.
func TestActivateResetsAssistState(t *testing.T) {
	fh := &fakeHistory{msgs: map[int64][]models.Message{
		1: {confirmed(1, 1, 3, "hi")},
	}}
	fa := &fakeAssist{suggestions: []string{"ok"}, summary: "all good"}
	v := newTestView(fh, nil, fa)
	defer v.Close()

	v.Activate(conv(1))
	waitFor(t, func() bool { return len(v.Snapshot().Messages) == 1 })
	v.RequestSuggestions()
	v.RequestSummary()
	waitFor(t, func() bool {
		s := v.Snapshot()
		return len(s.Suggestions) == 1 && s.Summary == "all good"
	})

	v.Activate(conv(2))
	s := v.Snapshot()
	if len(s.Suggestions) != 0 || s.Summary != "" {
		t.Fatalf("assist state survived a conversation switch: %+v", s)
	}
}
