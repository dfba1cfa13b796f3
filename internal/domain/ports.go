//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../mocks/mock_ports.go -package=mocks
package domain

import "context"

// MessageStore defines message's persistence.
// Implementations own the canonical collection and assign ID and Timestamp on Create.
type MessageStore interface {
	// List returns at most limit messages, newest first.
	List(ctx context.Context, limit int) ([]*Message, error)
	Create(ctx context.Context, text string) (*Message, error)
	Delete(ctx context.Context, id MessageID) error
	Health(ctx context.Context) (StoreHealth, error)
	Close(ctx context.Context) error
}
