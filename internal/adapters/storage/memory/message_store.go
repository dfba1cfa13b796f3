package memory

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/PabloGalante/msgboard/internal/domain"
)

const backendName = "memory"

// MessageStore keeps messages in insertion order for the lifetime of the process.
type MessageStore struct {
	mu       sync.RWMutex
	messages []*domain.Message
	seq      int64
	now      func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{now: time.Now}
}

func (s *MessageStore) Create(_ context.Context, text string) (*domain.Message, error) {
	text, err := domain.NormalizeText(text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg := &domain.Message{
		ID:        domain.MessageID(strconv.FormatInt(s.seq, 10)),
		Text:      text,
		Timestamp: s.now().UTC(),
	}
	s.messages = append(s.messages, msg)

	cp := *msg
	return &cp, nil
}

// List returns newest first. Equal timestamps keep reverse insertion order.
func (s *MessageStore) List(_ context.Context, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.messages)
	if limit > 0 && n > limit {
		n = limit
	}

	out := make([]*domain.Message, 0, n)
	for i := len(s.messages) - 1; i >= 0 && len(out) < n; i-- {
		cp := *s.messages[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MessageStore) Delete(_ context.Context, id domain.MessageID) error {
	if !validID(id) {
		return domain.NewValidationError("id", "id must be a positive integer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.messages, func(m *domain.Message) bool { return m.ID == id })
	if idx < 0 {
		return domain.ErrNotFound
	}
	s.messages = slices.Delete(s.messages, idx, idx+1)
	return nil
}

func (s *MessageStore) Health(_ context.Context) (domain.StoreHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.StoreHealth{
		Backend:      backendName,
		Connected:    true,
		MessageCount: int64(len(s.messages)),
	}, nil
}

func (s *MessageStore) Close(context.Context) error {
	return nil
}

func validID(id domain.MessageID) bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && n > 0
}
