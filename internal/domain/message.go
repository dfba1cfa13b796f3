package domain

import (
	"strings"
	"unicode/utf8"
)

// Message is the only entity of the board. It is immutable once stored.
type Message struct {
	ID        MessageID
	Text      string
	Timestamp Timestamp
}

// StoreHealth is what a store reports to the health endpoint.
type StoreHealth struct {
	Backend      string
	Connected    bool
	PingMs       int64
	MessageCount int64
}

// NormalizeText trims the text and checks it fits a message.
// Stores call it again on insert so no path can persist an empty message.
func NormalizeText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", NewValidationError("text", "text is required and must be a non-empty string")
	}
	if utf8.RuneCountInString(trimmed) > MaxTextLength {
		return "", NewValidationError("text", "text must be at most 500 characters")
	}
	return trimmed, nil
}
