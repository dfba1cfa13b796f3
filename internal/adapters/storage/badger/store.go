package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/PabloGalante/msgboard/internal/domain"
)

const (
	backendName = "badger"

	messagePrefix = "msg:"
	indexPrefix   = "id:"
)

// Store persists messages in an embedded BadgerDB.
type Store struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

// Open opens (or creates) the database directory at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", path, err)
	}
	return New(db, log), nil
}

// New wraps an already opened database. Close closes it.
func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log.With("component", "badger_store"), now: time.Now}
}

type diskMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// messageKey is "msg:{unixnano padded to 19 digits}:{uuid}" so that keys sort
// chronologically and two messages in the same nanosecond do not collide.
func messageKey(at time.Time, id uuid.UUID) []byte {
	return fmt.Appendf(nil, "%s%019d:%s", messagePrefix, at.UnixNano(), id)
}

func indexKey(id uuid.UUID) []byte {
	return []byte(indexPrefix + id.String())
}

func (s *Store) Create(_ context.Context, text string) (*domain.Message, error) {
	text, err := domain.NormalizeText(text)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	msg := diskMessage{ID: id.String(), Text: text, Timestamp: s.now().UTC()}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	key := messageKey(msg.Timestamp, id)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(id), key)
	})
	if err != nil {
		return nil, fmt.Errorf("badger Create: %w", err)
	}
	return toDomain(msg), nil
}

// List scans the message prefix backwards, newest first.
func (s *Store) List(_ context.Context, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}

	out := make([]*domain.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(messagePrefix), "9999999999999999999~"...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if len(out) == limit {
				s.log.Debug("message list limit reached", "limit", limit)
				break
			}
			var msg diskMessage
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, toDomain(msg))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger List: %w", err)
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, id domain.MessageID) error {
	parsed, err := uuid.Parse(string(id))
	if err != nil {
		return domain.NewValidationError("id", "id must be a UUID")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(parsed))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("badger Delete: %w", err)
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("badger Delete: %w", err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("badger Delete: %w", err)
		}
		return txn.Delete(indexKey(parsed))
	})
}

func (s *Store) Health(_ context.Context) (domain.StoreHealth, error) {
	health := domain.StoreHealth{Backend: backendName}
	if s.db.IsClosed() {
		return health, domain.ErrStoreUnavailable
	}

	start := time.Now()
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(messagePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return health, fmt.Errorf("badger count: %w", err)
	}

	health.Connected = true
	health.PingMs = time.Since(start).Milliseconds()
	health.MessageCount = count
	return health, nil
}

func (s *Store) Close(context.Context) error {
	s.log.Info("Closing BadgerDB...")
	return s.db.Close()
}

func toDomain(m diskMessage) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(m.ID),
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}
