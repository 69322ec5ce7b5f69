package collab

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/config"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

// CursorPosition carries a caret index and an optional selection range. A
// selection update merges into the existing structure instead of replacing
// it wholesale.
type CursorPosition struct {
	Index          int  `json:"index"`
	SelectionStart *int `json:"selection_start,omitempty"`
	SelectionEnd   *int `json:"selection_end,omitempty"`
}

// Viewport is the remote peer's scroll position. Last write wins.
type Viewport struct {
	ScrollTop  float64 `json:"scroll_top"`
	ScrollLeft float64 `json:"scroll_left"`
}

// PresenceState is one participant's ephemeral record in a room. It lives
// only as long as the subscription; a reconnect starts fresh.
type PresenceState struct {
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name,omitempty"`
	AvatarURL   string          `json:"avatar_url,omitempty"`
	Color       string          `json:"color"`
	Cursor      *CursorPosition `json:"cursor_position,omitempty"`
	IsTyping    bool            `json:"is_typing,omitempty"`
	Viewport    *Viewport       `json:"viewport,omitempty"`
	LastSeen    time.Time       `json:"last_seen"`
}

// SessionState is the session's connection state machine:
// disconnected -> joining -> joined, and back to disconnected on leave or
// transport failure. A dropped session must re-Join fully, never resume.
type SessionState int

const (
	SessionDisconnected SessionState = iota
	SessionJoining
	SessionJoined
)

type presenceEvent struct {
	Event string        `json:"event"` // join, update, leave
	State PresenceState `json:"state"`
}

// Session owns one client's view of a resource's presence room: the channel
// handle, the throttle and typing timers, and the local collaborator cache.
// Construct one per (resourceType, resourceID, user) and Leave it when done;
// nothing here is global.
type Session struct {
	bus   broadcast.Broadcaster
	store *broadcast.PresenceStore
	cfg   config.CollabConfig
	room  string
	log   *logger.Logger

	mu            sync.Mutex
	state         SessionState
	self          PresenceState
	collaborators map[string]PresenceState
	sub           broadcast.Subscription
	limiter       *rate.Limiter
	cursorPending bool
	cursorTimer   *time.Timer
	typingTimer   *time.Timer
	changeFns     []func(ChangeEvent)
	disconnectFns []func()
}

func NewSession(bus broadcast.Broadcaster, store *broadcast.PresenceStore, cfg config.CollabConfig, resourceType models.ResourceType, resourceID string, profile models.Profile) *Session {
	return &Session{
		bus:   bus,
		store: store,
		cfg:   cfg,
		room:  broadcast.RoomName(string(resourceType), resourceID),
		log:   logger.New("PresenceSession"),
		self: PresenceState{
			UserID:      profile.ID,
			Email:       profile.Email,
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
			Color:       ColorFor(profile.ID),
		},
		collaborators: make(map[string]PresenceState),
		limiter:       rate.NewLimiter(rate.Every(cfg.CursorThrottle), 1),
	}
}

// State returns the session's connection state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join subscribes to the room, seeds the collaborator cache from the room's
// presence set and registers the session's own presence. A client that joins
// without publishing presence would be invisible to others, so
// self-registration is part of Join, not a separate step.
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionDisconnected {
		s.mu.Unlock()
		return badRequest("session already joined")
	}
	s.state = SessionJoining
	s.mu.Unlock()

	sub, err := s.bus.Subscribe(ctx, s.room, s.handleMessage)
	if err != nil {
		s.mu.Lock()
		s.state = SessionDisconnected
		s.mu.Unlock()
		return s.log.Error("room subscribe failed", err)
	}

	seeded := make(map[string]PresenceState)
	if existing, err := s.store.All(ctx, s.room); err == nil {
		for userID, raw := range existing {
			if userID == s.self.UserID {
				continue
			}
			var state PresenceState
			if err := json.Unmarshal(raw, &state); err == nil {
				seeded[userID] = state
			}
		}
	} else {
		s.log.Warn("presence seed failed for %s: %v", s.room, err)
	}

	s.mu.Lock()
	s.sub = sub
	s.collaborators = seeded
	s.state = SessionJoined
	s.mu.Unlock()

	go func() {
		<-sub.Done()
		s.markDisconnected()
	}()

	return s.publishSelf(ctx, "join")
}

// Leave cancels pending timers, withdraws the presence record and releases
// the subscription. Timers are cancelled before the channel goes away so no
// late callback writes into a closed room.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionJoined {
		s.mu.Unlock()
		return nil
	}
	s.stopTimersLocked()
	s.state = SessionDisconnected
	sub := s.sub
	s.sub = nil
	s.collaborators = make(map[string]PresenceState)
	state := s.self
	s.mu.Unlock()

	state.LastSeen = time.Now()
	if msg, err := broadcast.NewMessage(broadcast.KindPresence, s.room, presenceEvent{Event: "leave", State: state}); err == nil {
		if err := s.bus.Publish(ctx, s.room, msg); err != nil {
			s.log.Warn("leave broadcast failed: %v", err)
		}
	}
	if err := s.store.Remove(ctx, s.room, state.UserID); err != nil {
		s.log.Warn("presence record removal failed: %v", err)
	}

	return sub.Close()
}

// UpdateCursor publishes the caret position, throttled to one outgoing
// update per throttle window. Excess updates inside a window coalesce to the
// latest value; nothing is queued.
func (s *Session) UpdateCursor(ctx context.Context, position CursorPosition) error {
	s.mu.Lock()
	if s.state != SessionJoined {
		s.mu.Unlock()
		return nil
	}
	s.self.Cursor = &position

	if s.limiter.Allow() {
		s.mu.Unlock()
		return s.publishSelf(ctx, "update")
	}

	s.cursorPending = true
	if s.cursorTimer == nil {
		s.cursorTimer = time.AfterFunc(s.cfg.CursorThrottle, func() {
			s.flushCursor(context.Background())
		})
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) flushCursor(ctx context.Context) {
	s.mu.Lock()
	s.cursorTimer = nil
	if !s.cursorPending || s.state != SessionJoined {
		s.cursorPending = false
		s.mu.Unlock()
		return
	}
	s.cursorPending = false
	s.mu.Unlock()

	if err := s.publishSelf(ctx, "update"); err != nil {
		s.log.Warn("coalesced cursor update dropped: %v", err)
	}
}

// UpdateSelection merges a selection range into the existing cursor
// structure, preserving the caret index.
func (s *Session) UpdateSelection(ctx context.Context, start, end int) error {
	s.mu.Lock()
	if s.state != SessionJoined {
		s.mu.Unlock()
		return nil
	}
	if s.self.Cursor == nil {
		s.self.Cursor = &CursorPosition{}
	}
	s.self.Cursor.SelectionStart = &start
	s.self.Cursor.SelectionEnd = &end
	s.mu.Unlock()

	return s.publishSelf(ctx, "update")
}

// SetTyping publishes the typing indicator. Setting it true arms a local
// timer that clears it after the configured inactivity window; the server
// enforces no TTL of its own.
func (s *Session) SetTyping(ctx context.Context, typing bool) error {
	s.mu.Lock()
	if s.state != SessionJoined {
		s.mu.Unlock()
		return nil
	}
	s.self.IsTyping = typing
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	if typing {
		s.typingTimer = time.AfterFunc(s.cfg.TypingTimeout, func() {
			if err := s.SetTyping(context.Background(), false); err != nil {
				s.log.Warn("typing auto-clear dropped: %v", err)
			}
		})
	}
	s.mu.Unlock()

	return s.publishSelf(ctx, "update")
}

// UpdateViewport publishes the scroll position immediately; unthrottled,
// last write wins.
func (s *Session) UpdateViewport(ctx context.Context, scrollTop, scrollLeft float64) error {
	s.mu.Lock()
	if s.state != SessionJoined {
		s.mu.Unlock()
		return nil
	}
	s.self.Viewport = &Viewport{ScrollTop: scrollTop, ScrollLeft: scrollLeft}
	s.mu.Unlock()

	return s.publishSelf(ctx, "update")
}

// Collaborators returns the room's remote participants, never including the
// session's own user, sorted by user id for stable iteration. Only the
// latest known state per user is kept.
func (s *Session) Collaborators() []PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PresenceState, 0, len(s.collaborators))
	for _, state := range s.collaborators {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// OnChange registers a callback for live change events on this room. The
// feed does not suppress self-echo; handlers filter on event.UserID.
func (s *Session) OnChange(fn func(ChangeEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeFns = append(s.changeFns, fn)
}

// OnDisconnect registers a callback for transport loss. Re-joining is the
// caller's decision; broadcast.Backoff helps pace the attempts.
func (s *Session) OnDisconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectFns = append(s.disconnectFns, fn)
}

func (s *Session) publishSelf(ctx context.Context, event string) error {
	s.mu.Lock()
	if s.state != SessionJoined {
		s.mu.Unlock()
		return nil
	}
	s.self.LastSeen = time.Now()
	state := s.self
	s.mu.Unlock()

	if err := s.store.Set(ctx, s.room, state.UserID, state); err != nil {
		s.log.Warn("presence record write failed: %v", err)
	}

	msg, err := broadcast.NewMessage(broadcast.KindPresence, s.room, presenceEvent{Event: event, State: state})
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, s.room, msg)
}

func (s *Session) handleMessage(msg broadcast.Message) {
	switch msg.Kind {
	case broadcast.KindPresence:
		var ev presenceEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			s.log.Warn("dropping malformed presence event on %s: %v", s.room, err)
			return
		}
		if ev.State.UserID == s.self.UserID {
			return
		}
		s.mu.Lock()
		switch ev.Event {
		case "leave":
			delete(s.collaborators, ev.State.UserID)
		default:
			s.collaborators[ev.State.UserID] = ev.State
		}
		s.mu.Unlock()

	case broadcast.KindChange:
		var ev ChangeEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			s.log.Warn("dropping malformed change event on %s: %v", s.room, err)
			return
		}
		s.mu.Lock()
		fns := make([]func(ChangeEvent), len(s.changeFns))
		copy(fns, s.changeFns)
		s.mu.Unlock()
		for _, fn := range fns {
			fn(ev)
		}
	}
}

func (s *Session) markDisconnected() {
	s.mu.Lock()
	if s.state == SessionDisconnected {
		s.mu.Unlock()
		return
	}
	s.stopTimersLocked()
	s.state = SessionDisconnected
	s.sub = nil
	s.collaborators = make(map[string]PresenceState)
	fns := make([]func(), len(s.disconnectFns))
	copy(fns, s.disconnectFns)
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Session) stopTimersLocked() {
	if s.cursorTimer != nil {
		s.cursorTimer.Stop()
		s.cursorTimer = nil
	}
	s.cursorPending = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}
