package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/msgboard/internal/adapters/storage/conncache"
	"github.com/PabloGalante/msgboard/internal/domain"
	"github.com/PabloGalante/msgboard/internal/observability"
)

const (
	backendName = "firestore"

	// maxDocIDBytes is the Firestore limit on document ID size.
	maxDocIDBytes = 1500
)

type Config struct {
	ProjectID      string
	Collection     string
	ConnectTimeout time.Duration
}

// Store keeps messages as documents of one Firestore collection.
// It follows the same lifecycle as the Mongo store: a lazily created client, cached until
// an unavailable or unauthenticated response invalidates it.
type Store struct {
	conn       *conncache.Cache[*firestore.Client]
	collection string
	log        *slog.Logger
	now        func() time.Time
}

type Option func(*storeOptions)

type storeOptions struct {
	dialer conncache.Dialer[*firestore.Client]
	logger *slog.Logger
}

// WithDialer replaces client creation, for tests.
func WithDialer(d conncache.Dialer[*firestore.Client]) Option {
	return func(o *storeOptions) { o.dialer = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) { o.logger = l }
}

// NewStore creates a Firestore store.
// Uses the project passed (BOARD_GCP_PROJECT); an empty project leaves it unconfigured.
func NewStore(cfg Config, opts ...Option) *Store {
	o := storeOptions{
		dialer: func(ctx context.Context, _ *conncache.Handle[*firestore.Client]) (*firestore.Client, error) {
			client, err := firestore.NewClient(ctx, cfg.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("creating firestore client: %w", err)
			}
			return client, nil
		},
		logger: observability.Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger.With("component", "firestore_store")
	return &Store{
		conn: conncache.New(conncache.Config[*firestore.Client]{
			Backend:        backendName,
			Configured:     cfg.ProjectID != "",
			ConnectTimeout: cfg.ConnectTimeout,
			Dial:           o.dialer,
			Classify:       classify,
			Close: func(_ context.Context, c *firestore.Client) error {
				return c.Close()
			},
			Logger: log,
		}),
		collection: cfg.Collection,
		log:        log,
		now:        time.Now,
	}
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) messagesCol(h *conncache.Handle[*firestore.Client]) *firestore.CollectionRef {
	return h.Client.Collection(s.collection)
}

type messageDoc struct {
	Text      string    `firestore:"text"`
	Timestamp time.Time `firestore:"timestamp"`
}

func classify(err error) domain.ConnectionCategory {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.CategoryDNS
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return domain.CategoryAuth
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"):
		return domain.CategoryDNS
	case strings.Contains(msg, "credentials"):
		return domain.CategoryAuth
	default:
		return domain.CategoryOther
	}
}

func unavailable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Unauthenticated:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func validID(id domain.MessageID) bool {
	s := string(id)
	return s != "" && s != "." && s != ".." &&
		!strings.Contains(s, "/") &&
		len(s) <= maxDocIDBytes &&
		!(strings.HasPrefix(s, "__") && strings.HasSuffix(s, "__"))
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) List(ctx context.Context, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) {
			return nil, err
		}
		s.log.Warn("database unreachable, returning empty message list", "error", err)
		return []*domain.Message{}, nil
	}

	iter := s.messagesCol(h).OrderBy("timestamp", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	out := make([]*domain.Message, 0, limit)
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			if unavailable(err) {
				h.Invalidate("list failed: " + err.Error())
				s.log.Warn("database query failed, returning empty message list", "error", err)
				return []*domain.Message{}, nil
			}
			return nil, fmt.Errorf("firestore List: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, &domain.Message{
			ID:        domain.MessageID(snap.Ref.ID),
			Text:      doc.Text,
			Timestamp: doc.Timestamp.UTC(),
		})
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, text string) (*domain.Message, error) {
	text, err := domain.NormalizeText(text)
	if err != nil {
		return nil, err
	}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, domain.Unavailable(err)
	}

	doc := messageDoc{
		Text:      text,
		Timestamp: s.now().UTC(),
	}
	ref := s.messagesCol(h).NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		if unavailable(err) {
			h.Invalidate("create failed: " + err.Error())
			return nil, domain.Unavailable(fmt.Errorf("firestore Create: %w", err))
		}
		return nil, fmt.Errorf("firestore Create: %w", err)
	}

	return &domain.Message{
		ID:        domain.MessageID(ref.ID),
		Text:      doc.Text,
		Timestamp: doc.Timestamp,
	}, nil
}

func (s *Store) Delete(ctx context.Context, id domain.MessageID) error {
	if !validID(id) {
		return domain.NewValidationError("id", "id is not a valid document id")
	}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return domain.Unavailable(err)
	}

	_, err = s.messagesCol(h).Doc(string(id)).Delete(ctx, firestore.Exists)
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return domain.ErrNotFound
	case unavailable(err):
		h.Invalidate("delete failed: " + err.Error())
		return domain.Unavailable(fmt.Errorf("firestore Delete: %w", err))
	default:
		return fmt.Errorf("firestore Delete: %w", err)
	}
}

func (s *Store) Health(ctx context.Context) (domain.StoreHealth, error) {
	health := domain.StoreHealth{Backend: backendName}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return health, err
	}

	start := time.Now()
	res, err := s.messagesCol(h).NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		if unavailable(err) {
			h.Invalidate("health check failed: " + err.Error())
			return health, domain.Unavailable(fmt.Errorf("firestore count: %w", err))
		}
		return health, fmt.Errorf("firestore count: %w", err)
	}
	health.PingMs = time.Since(start).Milliseconds()
	health.Connected = true

	if v, ok := res["all"].(*firestorepb.Value); ok {
		health.MessageCount = v.GetIntegerValue()
	}
	return health, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
