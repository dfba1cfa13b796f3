package domain

import "time"

type MessageID string

type Timestamp = time.Time

const (
	// MaxTextLength is counted in characters, after trimming.
	MaxTextLength = 500

	// DefaultListLimit caps a single read. Truncation is not signalled to callers.
	DefaultListLimit = 100
)
