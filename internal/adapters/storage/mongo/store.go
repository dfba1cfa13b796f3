package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PabloGalante/msgboard/internal/adapters/storage/conncache"
	"github.com/PabloGalante/msgboard/internal/domain"
	"github.com/PabloGalante/msgboard/internal/observability"
)

const backendName = "mongo"

type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
}

// Store persists messages in a MongoDB collection.
//
// Reads and writes fail differently when the database is unreachable: List degrades to an
// empty result while Create and Delete fail with domain.ErrStoreUnavailable, so a write is
// never reported as stored when it was not.
type Store struct {
	conn       *conncache.Cache[*mongo.Client]
	database   string
	collection string
	log        *slog.Logger
	now        func() time.Time
}

type Option func(*storeOptions)

type storeOptions struct {
	dialer conncache.Dialer[*mongo.Client]
	logger *slog.Logger
}

// WithDialer replaces the driver dial, for tests.
func WithDialer(d conncache.Dialer[*mongo.Client]) Option {
	return func(o *storeOptions) { o.dialer = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) { o.logger = l }
}

// NewStore never touches the network. The connection is established on first use, and
// an empty URI leaves the store unconfigured instead of failing here.
func NewStore(cfg Config, opts ...Option) *Store {
	o := storeOptions{
		dialer: dial(cfg),
		logger: observability.Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger.With("component", "mongo_store")
	return &Store{
		conn: conncache.New(conncache.Config[*mongo.Client]{
			Backend:        backendName,
			Configured:     cfg.URI != "",
			ConnectTimeout: cfg.ConnectTimeout,
			Dial:           o.dialer,
			Classify:       classify,
			Close:          disconnect,
			RetireGrace:    cfg.SocketTimeout,
			Logger:         log,
		}),
		database:   cfg.Database,
		collection: cfg.Collection,
		log:        log,
		now:        time.Now,
	}
}

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Text      string             `bson:"text"`
	Timestamp time.Time          `bson:"timestamp"`
}

func (d messageDoc) toDomain() *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(d.ID.Hex()),
		Text:      d.Text,
		Timestamp: d.Timestamp.UTC(),
	}
}

func (s *Store) messagesCol(h *conncache.Handle[*mongo.Client]) *mongo.Collection {
	return h.Client.Database(s.database).Collection(s.collection)
}

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

	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.messagesCol(h).Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return s.degradeList(h, err)
	}

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return s.degradeList(h, err)
	}

	out := make([]*domain.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) degradeList(h *conncache.Handle[*mongo.Client], err error) ([]*domain.Message, error) {
	if !connectivityError(err) {
		return nil, fmt.Errorf("mongo List: %w", err)
	}
	h.Invalidate("list failed: " + err.Error())
	s.log.Warn("database query failed, returning empty message list", "error", err)
	return []*domain.Message{}, nil
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
		ID:        primitive.NewObjectID(),
		Text:      text,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.messagesCol(h).InsertOne(ctx, doc); err != nil {
		if connectivityError(err) {
			h.Invalidate("insert failed: " + err.Error())
			return nil, domain.Unavailable(fmt.Errorf("mongo Create: %w", err))
		}
		return nil, fmt.Errorf("mongo Create: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) Delete(ctx context.Context, id domain.MessageID) error {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return domain.NewValidationError("id", "id must be a 24 character hex ObjectId")
	}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return domain.Unavailable(err)
	}

	res, err := s.messagesCol(h).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		if connectivityError(err) {
			h.Invalidate("delete failed: " + err.Error())
			return domain.Unavailable(fmt.Errorf("mongo Delete: %w", err))
		}
		return fmt.Errorf("mongo Delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Health(ctx context.Context) (domain.StoreHealth, error) {
	health := domain.StoreHealth{Backend: backendName}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return health, err
	}

	start := time.Now()
	if err := h.Client.Ping(ctx, nil); err != nil {
		if connectivityError(err) {
			h.Invalidate("ping failed: " + err.Error())
		}
		return health, domain.Unavailable(fmt.Errorf("mongo ping: %w", err))
	}
	health.PingMs = time.Since(start).Milliseconds()

	count, err := s.messagesCol(h).CountDocuments(ctx, bson.D{})
	if err != nil {
		return health, fmt.Errorf("mongo count: %w", err)
	}
	health.Connected = true
	health.MessageCount = count
	return health, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
