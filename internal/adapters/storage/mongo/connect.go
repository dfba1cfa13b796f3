package mongo

import (
	"context"
	"errors"
	"net"
	"strings"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/PabloGalante/msgboard/internal/adapters/storage/conncache"
	"github.com/PabloGalante/msgboard/internal/domain"
)

// authenticationFailed is the server error code for bad credentials.
const authenticationFailed = 18

// clientOptions binds the driver monitors to h so that heartbeat failures, server
// closure and pool clears drop the cached handle.
func clientOptions(cfg Config, h *conncache.Handle[*mongo.Client]) *options.ClientOptions {
	serverMonitor := &event.ServerMonitor{
		ServerHeartbeatFailed: func(*event.ServerHeartbeatFailedEvent) {
			h.Invalidate("server heartbeat failed")
		},
		ServerClosed: func(*event.ServerClosedEvent) {
			h.Invalidate("server closed")
		},
		TopologyClosed: func(*event.TopologyClosedEvent) {
			h.Invalidate("topology closed")
		},
	}
	poolMonitor := &event.PoolMonitor{
		Event: func(e *event.PoolEvent) {
			if e.Type == event.PoolCleared {
				h.Invalidate("connection pool cleared")
			}
		},
	}

	return options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetServerMonitor(serverMonitor).
		SetPoolMonitor(poolMonitor)
}

func dial(cfg Config) conncache.Dialer[*mongo.Client] {
	return func(ctx context.Context, h *conncache.Handle[*mongo.Client]) (*mongo.Client, error) {
		client, err := mongo.Connect(ctx, clientOptions(cfg, h))
		if err != nil {
			return nil, err
		}
		// Connect is lazy; ping so a bad host or bad credentials fail here.
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return client, nil
	}
}

func disconnect(ctx context.Context, client *mongo.Client) error {
	return client.Disconnect(ctx)
}

func classify(err error) domain.ConnectionCategory {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.CategoryDNS
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == authenticationFailed {
		return domain.CategoryAuth
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "enotfound"),
		strings.Contains(msg, "server misbehaving"),
		strings.Contains(msg, "lookup "):
		return domain.CategoryDNS
	case strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "auth error"):
		return domain.CategoryAuth
	default:
		return domain.CategoryOther
	}
}

// connectivityError reports errors after which the cached client should not be trusted.
func connectivityError(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	var selErr topology.ServerSelectionError
	return errors.As(err, &selErr)
}
