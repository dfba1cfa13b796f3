package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	httpadapter "github.com/PabloGalante/msgboard/internal/adapters/http"
	badgerstore "github.com/PabloGalante/msgboard/internal/adapters/storage/badger"
	firestorestore "github.com/PabloGalante/msgboard/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/msgboard/internal/adapters/storage/memory"
	mongostore "github.com/PabloGalante/msgboard/internal/adapters/storage/mongo"
	"github.com/PabloGalante/msgboard/internal/app/board"
	"github.com/PabloGalante/msgboard/internal/config"
	"github.com/PabloGalante/msgboard/internal/domain"
	"github.com/PabloGalante/msgboard/internal/observability"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("loading config", "error", err)
		return 1
	}
	if err := observability.Configure(cfg.LogLevel); err != nil {
		log.Error("configuring logger", "error", err)
		return 1
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Error("initializing store", "backend", cfg.Backend(), "error", err)
		return 1
	}

	svc := board.NewService(store, cfg.ListLimit)
	handler := httpadapter.NewServer(svc, httpadapter.Options{
		BasePath:       cfg.BasePath,
		AllowedOrigins: cfg.Origins(),
		Backend:        string(cfg.Backend()),
		Version:        version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("message board API listening", "addr", srv.Addr, "backend", cfg.Backend(), "basePath", cfg.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Info("shutting down http server")
				return srv.Shutdown(ctx)
			},
			"message-store": func(ctx context.Context) error {
				return store.Close(ctx)
			},
		},
	)

	select {
	case err := <-serveErr:
		log.Error("http server failed", "error", err)
		_ = store.Close(context.Background())
		return 1
	case code := <-wait:
		log.Info("exited", "code", code)
		return code
	}
}

func newStore(cfg *config.Config) (domain.MessageStore, error) {
	log := observability.WithFields("backend", string(cfg.Backend()))

	switch cfg.Backend() {
	case config.BackendMongo:
		if cfg.MongoURI == "" {
			log.Warn("MONGODB_URI is not set; data endpoints will answer 503")
		}
		return mongostore.NewStore(mongostore.Config{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			Collection:     cfg.MongoCollection,
			ConnectTimeout: cfg.DBConnectTimeout,
			SocketTimeout:  cfg.DBSocketTimeout,
		}, mongostore.WithLogger(log)), nil

	case config.BackendFirestore:
		if cfg.GCPProjectID == "" {
			log.Warn("BOARD_GCP_PROJECT is not set; data endpoints will answer 503")
		}
		return firestorestore.NewStore(firestorestore.Config{
			ProjectID:      cfg.GCPProjectID,
			Collection:     cfg.FirestoreCollection,
			ConnectTimeout: cfg.DBConnectTimeout,
		}, firestorestore.WithLogger(log)), nil

	case config.BackendBadger:
		s, err := badgerstore.Open(cfg.BadgerPath, log)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		log.Info("using in-memory storage; messages are lost on restart")
		return memstore.NewMessageStore(), nil
	}
}
