package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Message is the wire shape returned by the board API.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a non-2xx answer carrying the server's {error, message} envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// ErrUnreachable wraps transport failures.
var ErrUnreachable = errors.New("could not reach the message board server")

type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (a *API) ListMessages(ctx context.Context) ([]Message, error) {
	var out []Message
	if err := a.do(ctx, http.MethodGet, "/api/messages", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

func (a *API) CreateMessage(ctx context.Context, text string) (Message, error) {
	var out Message
	body := map[string]string{"text": text}
	if err := a.do(ctx, http.MethodPost, "/api/messages", body, http.StatusCreated, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

func (a *API) DeleteMessage(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(id), nil, http.StatusOK, nil)
}

func (a *API) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		apiErr := &APIError{Status: resp.StatusCode}
		var env struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
			apiErr.Code = env.Error
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
