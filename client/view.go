package client

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"chatline/models"
)

// SummaryFallback is shown when summarization fails; assist problems never
// surface as errors in the conversation view.
const SummaryFallback = "Summary unavailable."

// HistoryFetcher loads the persisted transcript page for a conversation.
type HistoryFetcher interface {
	RoomMessages(ctx context.Context, roomID int64, limit int, beforeID int64) ([]models.Message, error)
}

// Sender dispatches an outbound message, fire-and-forget. Confirmation
// arrives later via the push channel.
type Sender interface {
	Send(roomID int64, content string) error
}

// Assistant produces reply suggestions and summaries; both may fail.
type Assistant interface {
	SuggestReplies(ctx context.Context, recent []models.Message, selfID int64) ([]string, error)
	Summarize(ctx context.Context, msgs []models.Message, selfID int64) (string, error)
}

// Snapshot is an immutable copy of the view state handed to the renderer.
type Snapshot struct {
	Conversation *models.Conversation
	Messages     []models.Message
	Suggestions  []string
	Summary      string
}

type viewEvent any

type evActivate struct{ conv models.Conversation }
type evCompose struct{ text string }
type evIncoming struct{ msg models.Message }
type evHistory struct {
	gen  uint64
	msgs []models.Message
	err  error
}
type evSuggest struct{}
type evSummarize struct{}
type evSuggestions struct {
	gen  uint64
	list []string
}
type evSummary struct {
	gen  uint64
	text string
}
type evSnapshot struct{ reply chan Snapshot }

// View owns the transcript for whichever conversation is active. All state
// below the queue is touched only by the run loop, so activation, compose,
// push events and async completions never interleave: ordering comes from
// the bounded single-consumer queue, not from locks.
type View struct {
	selfID   int64
	history  HistoryFetcher
	sender   Sender
	assist   Assistant
	pageSize int
	onChange func(Snapshot)

	events    chan viewEvent
	done      chan struct{}
	closeOnce sync.Once

	// run-loop state
	active      *models.Conversation
	transcript  *Transcript
	loadGen     uint64
	assistGen   uint64 // advanced on Activate; stale assist results are dropped
	suggestions []string
	summary     string
}

// NewView starts the event loop. onChange (optional) is invoked from the
// loop after every state change; it must not call back into the view.
func NewView(selfID int64, history HistoryFetcher, sender Sender, assist Assistant, pageSize int, onChange func(Snapshot)) *View {
	if pageSize <= 0 {
		pageSize = 50
	}
	v := &View{
		selfID:   selfID,
		history:  history,
		sender:   sender,
		assist:   assist,
		pageSize: pageSize,
		onChange: onChange,
		events:   make(chan viewEvent, 64),
		done:     make(chan struct{}),
	}
	go v.run()
	return v
}

// Activate switches the view to conv: a fresh empty transcript, AI state
// reset, history load kicked off in the background.
func (v *View) Activate(conv models.Conversation) {
	v.post(evActivate{conv: conv})
}

// Compose sends text and appends it optimistically. Empty input is dropped.
func (v *View) Compose(text string) {
	v.post(evCompose{text: text})
}

// HandlePush feeds one confirmed message event into the view. Safe to call
// from the push client's goroutine.
func (v *View) HandlePush(msg models.Message) {
	v.post(evIncoming{msg: msg})
}

// RequestSuggestions asks the assistant for reply suggestions.
func (v *View) RequestSuggestions() {
	v.post(evSuggest{})
}

// RequestSummary asks the assistant to summarize the transcript.
func (v *View) RequestSummary() {
	v.post(evSummarize{})
}

// Snapshot returns the current state. It round-trips through the event
// queue, so it reflects every event posted before it.
func (v *View) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case v.events <- evSnapshot{reply: reply}:
	case <-v.done:
		return Snapshot{}
	}
	select {
	case s := <-reply:
		return s
	case <-v.done:
		return Snapshot{}
	}
}

// Close stops the loop. Events posted afterwards are dropped.
func (v *View) Close() {
	v.closeOnce.Do(func() { close(v.done) })
}

func (v *View) post(e viewEvent) {
	select {
	case v.events <- e:
	case <-v.done:
	}
}

func (v *View) run() {
	for {
		select {
		case <-v.done:
			return
		case e := <-v.events:
			v.apply(e)
		}
	}
}

func (v *View) apply(e viewEvent) {
	switch ev := e.(type) {
	case evActivate:
		v.applyActivate(ev.conv)
	case evCompose:
		v.applyCompose(ev.text)
	case evIncoming:
		v.applyIncoming(ev.msg)
	case evHistory:
		v.applyHistory(ev)
	case evSuggest:
		v.applySuggest()
	case evSummarize:
		v.applySummarize()
	case evSuggestions:
		if ev.gen == v.assistGen {
			v.suggestions = ev.list
			v.notify()
		}
	case evSummary:
		if ev.gen == v.assistGen {
			v.summary = ev.text
			v.notify()
		}
	case evSnapshot:
		ev.reply <- v.snapshot()
	}
}

func (v *View) applyActivate(conv models.Conversation) {
	c := conv
	v.active = &c
	v.transcript = NewTranscript(conv.ID, v.selfID)
	v.suggestions = nil
	v.summary = ""
	v.assistGen++

	v.loadGen++
	gen := v.loadGen
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		msgs, err := v.history.RoomMessages(ctx, conv.ID, v.pageSize, 0)
		v.post(evHistory{gen: gen, msgs: msgs, err: err})
	}()
	v.notify()
}

// applyHistory installs a load result, unless the active conversation moved
// on while the fetch was in flight — a stale response must never overwrite
// the newer conversation's transcript.
func (v *View) applyHistory(ev evHistory) {
	if ev.gen != v.loadGen || v.transcript == nil {
		return
	}
	if ev.err != nil {
		log.Printf("[view] history load failed for room %d: %v", v.transcript.ConversationID(), ev.err)
		return
	}
	v.transcript.Install(ev.msgs)
	v.notify()
}

// applyCompose dispatches to the sender and appends the optimistic entry.
// The append does not depend on the send outcome; transport here is
// fire-and-forget and the user sees their message immediately.
func (v *View) applyCompose(text string) {
	text = strings.TrimSpace(text)
	if text == "" || v.transcript == nil {
		return
	}
	if err := v.sender.Send(v.transcript.ConversationID(), text); err != nil {
		log.Printf("[view] send dispatch failed: %v", err)
	}
	v.transcript.AppendOptimistic(text, time.Now())
	v.notify()
}

func (v *View) applyIncoming(msg models.Message) {
	if v.transcript == nil {
		return
	}
	if v.transcript.Reconcile(msg) {
		v.notify()
	}
}

func (v *View) applySuggest() {
	if v.transcript == nil || v.transcript.Len() == 0 {
		v.suggestions = nil
		v.notify()
		return
	}
	gen := v.assistGen
	recent := v.transcript.Messages()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		list, err := v.assist.SuggestReplies(ctx, recent, v.selfID)
		if err != nil {
			log.Printf("[view] suggestions failed: %v", err)
			list = nil
		}
		v.post(evSuggestions{gen: gen, list: list})
	}()
}

func (v *View) applySummarize() {
	if v.transcript == nil || v.transcript.Len() == 0 {
		v.summary = ""
		v.notify()
		return
	}
	gen := v.assistGen
	msgs := v.transcript.Messages()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		text, err := v.assist.Summarize(ctx, msgs, v.selfID)
		if err != nil {
			log.Printf("[view] summary failed: %v", err)
			text = SummaryFallback
		}
		v.post(evSummary{gen: gen, text: text})
	}()
}

func (v *View) snapshot() Snapshot {
	s := Snapshot{
		Suggestions: append([]string(nil), v.suggestions...),
		Summary:     v.summary,
	}
	if v.active != nil {
		c := *v.active
		s.Conversation = &c
	}
	if v.transcript != nil {
		s.Messages = v.transcript.Messages()
	}
	return s
}

func (v *View) notify() {
	if v.onChange != nil {
		v.onChange(v.snapshot())
	}
}
