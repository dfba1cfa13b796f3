package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	list      []Message
	listErr   error
	createErr error
	deleteErr error
	nextID    int
	created   []string
	deleted   []string
}

func (f *fakeAPI) ListMessages(context.Context) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Message(nil), f.list...), nil
}

func (f *fakeAPI) CreateMessage(_ context.Context, text string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, text)
	if f.createErr != nil {
		return Message{}, f.createErr
	}
	f.nextID++
	return Message{ID: string(rune('a' + f.nextID - 1)), Text: text, Timestamp: time.Now()}, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

var errDown = &APIError{Status: 503, Code: "Service Unavailable", Message: "Database is not reachable"}

func TestControllerInitialState(t *testing.T) {
	s := NewController(&fakeAPI{}).Snapshot()
	assert.True(t, s.Loading)
	assert.Empty(t, s.Messages)
	assert.False(t, s.HasError())
	assert.Equal(t, PhaseIdle, s.LoadPhase)
	assert.Equal(t, PhaseIdle, s.CreatePhase)
}

func TestControllerLoad(t *testing.T) {
	api := &fakeAPI{list: []Message{{ID: "2", Text: "b"}, {ID: "1", Text: "a"}}}
	c := NewController(api)

	require.NoError(t, c.Load(context.Background()))

	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.Equal(t, PhaseResolved, s.LoadPhase)
	assert.Equal(t, api.list, s.Messages)
}

func TestControllerLoadFailureThenDismiss(t *testing.T) {
	c := NewController(&fakeAPI{listErr: errDown})

	require.Error(t, c.Load(context.Background()))

	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.Equal(t, PhaseRejected, s.LoadPhase)
	assert.Empty(t, s.Messages)
	assert.Equal(t, "Failed to load messages: Database is not reachable", s.Error)

	c.DismissError()
	s = c.Snapshot()
	assert.False(t, s.HasError())
	assert.Empty(t, s.Messages)
	assert.Equal(t, PhaseRejected, s.LoadPhase)
}

func TestControllerLoadSuccessClearsError(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("boom")}
	c := NewController(api)
	require.Error(t, c.Load(context.Background()))
	require.True(t, c.Snapshot().HasError())

	api.listErr = nil
	api.list = []Message{{ID: "1", Text: "a"}}
	require.NoError(t, c.Load(context.Background()))
	assert.False(t, c.Snapshot().HasError())
}

func TestControllerLoadFailureKeepsMessages(t *testing.T) {
	api := &fakeAPI{list: []Message{{ID: "1", Text: "a"}}}
	c := NewController(api)
	require.NoError(t, c.Load(context.Background()))

	api.listErr = errDown
	require.Error(t, c.Load(context.Background()))
	assert.Len(t, c.Snapshot().Messages, 1)
}

func TestControllerSubmit(t *testing.T) {
	api := &fakeAPI{list: []Message{{ID: "x", Text: "older"}}}
	c := NewController(api)
	require.NoError(t, c.Load(context.Background()))

	c.SetDraft("  hello  ")
	require.NoError(t, c.Submit(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, PhaseResolved, s.CreatePhase)
	assert.Empty(t, s.Draft)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "older", s.Messages[0].Text)
	assert.Equal(t, "  hello  ", s.Messages[1].Text)
}

func TestControllerSubmitBlankDraft(t *testing.T) {
	for _, draft := range []string{"", "   ", "\n\t"} {
		api := &fakeAPI{}
		c := NewController(api)
		c.SetDraft(draft)

		require.NoError(t, c.Submit(context.Background()))
		assert.Empty(t, api.created)
		assert.Equal(t, PhaseIdle, c.Snapshot().CreatePhase)
		assert.Equal(t, draft, c.Snapshot().Draft)
	}
}

func TestControllerSubmitFailure(t *testing.T) {
	c := NewController(&fakeAPI{createErr: errDown})
	c.SetDraft("hello")

	require.Error(t, c.Submit(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, PhaseRejected, s.CreatePhase)
	assert.Equal(t, "hello", s.Draft)
	assert.Empty(t, s.Messages)
	assert.Equal(t, "Failed to send message: Database is not reachable", s.Error)
}

func TestControllerDoubleSubmitNotDeduplicated(t *testing.T) {
	api := &fakeAPI{}
	c := NewController(api)
	c.SetDraft("same")

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Submit(context.Background())
		}()
	}
	wg.Wait()

	// The second submit may observe the cleared draft if the first one already resolved.
	api.mu.Lock()
	sent := len(api.created)
	api.mu.Unlock()
	assert.Len(t, c.Snapshot().Messages, sent)
	assert.GreaterOrEqual(t, sent, 1)
}

func TestControllerDelete(t *testing.T) {
	api := &fakeAPI{list: []Message{{ID: "2"}, {ID: "1"}}}
	c := NewController(api)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Delete(context.Background(), "2"))

	s := c.Snapshot()
	assert.Equal(t, []Message{{ID: "1"}}, s.Messages)
	assert.NotContains(t, s.DeletePhases, "2")
	assert.Equal(t, []string{"2"}, api.deleted)
}

func TestControllerDeleteFailureIsNotOptimistic(t *testing.T) {
	api := &fakeAPI{list: []Message{{ID: "1"}}}
	c := NewController(api)
	require.NoError(t, c.Load(context.Background()))

	api.deleteErr = &APIError{Status: 404, Code: "Not Found", Message: "Message not found"}
	require.Error(t, c.Delete(context.Background(), "1"))

	s := c.Snapshot()
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, PhaseRejected, s.DeletePhases["1"])
	assert.Equal(t, "Failed to delete message: Message not found", s.Error)
}

func TestControllerSnapshotIsolated(t *testing.T) {
	c := NewController(&fakeAPI{list: []Message{{ID: "1", Text: "a"}}})
	require.NoError(t, c.Load(context.Background()))

	s := c.Snapshot()
	s.Messages[0].Text = "mutated"
	s.DeletePhases["1"] = PhasePending

	again := c.Snapshot()
	assert.Equal(t, "a", again.Messages[0].Text)
	assert.NotContains(t, again.DeletePhases, "1")
}

func TestDescribeUnreachable(t *testing.T) {
	err := errors.Join(ErrUnreachable, errors.New("dial tcp: refused"))
	assert.Equal(t, "Failed to load messages: server unreachable", describe("load messages", err))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "pending", PhasePending.String())
	assert.Equal(t, "resolved", PhaseResolved.String())
	assert.Equal(t, "rejected", PhaseRejected.String())
}

type blockingCreateAPI struct {
	fakeAPI
	started chan struct{}
	release chan struct{}
}

func (b *blockingCreateAPI) CreateMessage(ctx context.Context, text string) (Message, error) {
	close(b.started)
	<-b.release
	return b.fakeAPI.CreateMessage(ctx, text)
}

func TestControllerSubmitKeepsTextTypedWhilePending(t *testing.T) {
	api := &blockingCreateAPI{started: make(chan struct{}), release: make(chan struct{})}
	c := NewController(api)
	c.SetDraft("first")

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	<-api.started
	assert.Equal(t, PhasePending, c.Snapshot().CreatePhase)
	c.SetDraft("second, typed while sending")
	close(api.release)
	require.NoError(t, <-done)

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "first", s.Messages[0].Text)
	assert.Equal(t, "second, typed while sending", s.Draft)
}

func TestControllerDeletePhasesDoNotAccumulate(t *testing.T) {
	api := &fakeAPI{list: []Message{{ID: "3"}, {ID: "2"}, {ID: "1"}}}
	c := NewController(api)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Delete(context.Background(), "3"))
	require.NoError(t, c.Delete(context.Background(), "2"))
	assert.Empty(t, c.Snapshot().DeletePhases)

	api.deleteErr = errDown
	require.Error(t, c.Delete(context.Background(), "1"))
	assert.Equal(t, PhaseRejected, c.Snapshot().DeletePhases["1"])

	// the message went away elsewhere; the next load forgets the failed delete
	api.deleteErr = nil
	api.list = []Message{{ID: "9"}}
	require.NoError(t, c.Load(context.Background()))
	assert.Empty(t, c.Snapshot().DeletePhases)
}
