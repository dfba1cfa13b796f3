package client

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MessagesAPI is what the controller needs from the server.
type MessagesAPI interface {
	ListMessages(ctx context.Context) ([]Message, error)
	CreateMessage(ctx context.Context, text string) (Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// Phase tracks one request: idle → pending → resolved | rejected.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseResolved
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseResolved:
		return "resolved"
	case PhaseRejected:
		return "rejected"
	default:
		return "idle"
	}
}

// State is a snapshot of the client side of the board.
type State struct {
	Messages []Message
	Draft    string
	Loading  bool
	// Error is the last failure shown in the banner, "" when there is none.
	Error string

	LoadPhase   Phase
	CreatePhase Phase
	// DeletePhases is keyed by message ID. A confirmed delete drops its entry; the
	// absence of an entry reads as PhaseIdle.
	DeletePhases map[string]Phase
}

func (s State) HasError() bool {
	return s.Error != ""
}

// Controller holds the local copy of the message list and reconciles it with the API.
// Creates are appended and deletes filtered out on success instead of re-fetching.
// Methods block on the API call and may run concurrently; results are applied in the
// order they resolve.
type Controller struct {
	api MessagesAPI

	mu    sync.Mutex
	state State
}

func NewController(api MessagesAPI) *Controller {
	return &Controller{
		api: api,
		state: State{
			Messages:     []Message{},
			Loading:      true,
			DeletePhases: map[string]Phase{},
		},
	}
}

// Snapshot returns a copy that is safe to read while requests are in flight.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Messages = slices.Clone(c.state.Messages)
	s.DeletePhases = maps.Clone(c.state.DeletePhases)
	return s
}

// Load is the initial fetch.
func (c *Controller) Load(ctx context.Context) error {
	c.update(func(s *State) {
		s.Loading = true
		s.LoadPhase = PhasePending
	})

	msgs, err := c.api.ListMessages(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Loading = false
	if err != nil {
		c.state.LoadPhase = PhaseRejected
		c.state.Error = describe("load messages", err)
		return err
	}
	c.state.LoadPhase = PhaseResolved
	c.state.Messages = msgs
	c.state.Error = ""
	c.pruneDeletePhases()
	return nil
}

func (c *Controller) SetDraft(text string) {
	c.update(func(s *State) { s.Draft = text })
}

// Submit sends the draft. A blank draft sends nothing. Repeated submits are not
// de-duplicated.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	text := c.state.Draft
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return nil
	}
	c.state.CreatePhase = PhasePending
	c.mu.Unlock()

	msg, err := c.api.CreateMessage(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state.CreatePhase = PhaseRejected
		c.state.Error = describe("send message", err)
		return err
	}
	c.state.CreatePhase = PhaseResolved
	c.state.Messages = append(c.state.Messages, msg)
	// Text typed while the request was in flight is kept.
	if c.state.Draft == text {
		c.state.Draft = ""
	}
	return nil
}

// Delete removes the message locally only once the server confirmed it.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.update(func(s *State) { s.DeletePhases[id] = PhasePending })

	err := c.api.DeleteMessage(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state.DeletePhases[id] = PhaseRejected
		c.state.Error = describe("delete message", err)
		return err
	}
	delete(c.state.DeletePhases, id)
	c.state.Messages = slices.DeleteFunc(c.state.Messages, func(m Message) bool { return m.ID == id })
	return nil
}

// DismissError clears the banner. Nothing is retried.
func (c *Controller) DismissError() {
	c.update(func(s *State) { s.Error = "" })
}

// pruneDeletePhases forgets failed deletes of messages no longer listed. Caller holds mu.
func (c *Controller) pruneDeletePhases() {
	listed := make(map[string]struct{}, len(c.state.Messages))
	for _, m := range c.state.Messages {
		listed[m.ID] = struct{}{}
	}
	maps.DeleteFunc(c.state.DeletePhases, func(id string, p Phase) bool {
		_, ok := listed[id]
		return p != PhasePending && !ok
	})
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

func describe(action string, err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return "Failed to " + action + ": " + apiErr.Error()
	case errors.Is(err, ErrUnreachable):
		return "Failed to " + action + ": server unreachable"
	default:
		return "Failed to " + action + ": " + err.Error()
	}
}
