package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatline/models"
	"chatline/pkg/api"
	"chatline/pkg/config"
	"chatline/pkg/push"
	"chatline/pkg/services"
	tokenstore "chatline/pkg/token"
)

// Session is the explicitly owned connection context: token store, REST
// client, push connection and the single conversation view. Its lifecycle is
// tied to login/logout rather than living as ambient package state.
type Session struct {
	Tokens *tokenstore.Store
	API    *api.Client
	Push   *push.Client
	Assist *services.AssistService

	mu   sync.RWMutex
	view *View
}

func NewSession() *Session {
	tokens := tokenstore.NewStore()
	return &Session{
		Tokens: tokens,
		API:    api.NewClient(config.ServerURL, tokens),
		Push:   push.NewClient(config.WSURL, tokens, time.Duration(config.PushReconnectMaxSeconds)*time.Second),
		Assist: services.NewAssistService(),
	}
}

// Login authenticates and installs the bearer token.
func (s *Session) Login(ctx context.Context, username, password string) error {
	return s.API.Login(ctx, username, password)
}

// Connect opens the push channel and starts routing confirmed message events
// to the active view. Requires a prior Login.
func (s *Session) Connect(ctx context.Context) error {
	if _, err := s.Tokens.Token(); err != nil {
		return errors.New("connect before login")
	}
	s.Push.Subscribe(s.dispatch)
	if err := s.Push.Connect(ctx); err != nil {
		return err
	}

	v := NewView(s.Tokens.UserID(), s.API, s.Push, s.Assist, config.HistoryPageSize, nil)
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
	return nil
}

// View returns the conversation view, nil before Connect.
func (s *Session) View() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetOnChange wires the renderer callback by rebuilding the view with it.
// Call once, after Connect and before opening a conversation.
func (s *Session) SetOnChange(onChange func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != nil {
		s.view.Close()
	}
	s.view = NewView(s.Tokens.UserID(), s.API, s.Push, s.Assist, config.HistoryPageSize, onChange)
}

// Open makes conv the active conversation.
func (s *Session) Open(conv models.Conversation) {
	if v := s.View(); v != nil {
		v.Activate(conv)
	}
}

// dispatch routes one push event to whichever view is active. Events landing
// between views (or targeting an inactive conversation) are dropped by the
// view's own guards.
func (s *Session) dispatch(msg models.Message) {
	if v := s.View(); v != nil {
		v.HandlePush(msg)
	}
}

// Logout tears everything down: push connection, view loop, token.
func (s *Session) Logout() {
	s.Push.Close()
	s.mu.Lock()
	if s.view != nil {
		s.view.Close()
		s.view = nil
	}
	s.mu.Unlock()
	s.Tokens.Clear()
}
