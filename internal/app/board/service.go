package board

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/PabloGalante/msgboard/internal/domain"
	"github.com/PabloGalante/msgboard/internal/observability"
)

// CreateMessageRequest is the typed body of a create call.
// Text is a pointer so an absent field can be told apart from an empty one.
type CreateMessageRequest struct {
	Text *string `json:"text"`
}

// createInput is what the validator sees, after trimming.
type createInput struct {
	Text string `validate:"required,max=500"`
}

type Service struct {
	store     domain.MessageStore
	validate  *validator.Validate
	listLimit int
}

func NewService(store domain.MessageStore, listLimit int) *Service {
	if listLimit <= 0 {
		listLimit = domain.DefaultListLimit
	}
	return &Service{
		store:     store,
		validate:  validator.New(),
		listLimit: listLimit,
	}
}

// ListMessages returns the newest messages, at most the configured limit.
func (s *Service) ListMessages(ctx context.Context) ([]*domain.Message, error) {
	msgs, err := s.store.List(ctx, s.listLimit)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list messages", "error", err)
		return nil, err
	}
	return msgs, nil
}

// PostMessage validates the request before it reaches the store.
func (s *Service) PostMessage(ctx context.Context, req CreateMessageRequest) (*domain.Message, error) {
	in, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx)
	msg, err := s.store.Create(ctx, in.Text)
	if err != nil {
		log.Error("failed to create message", "error", err)
		return nil, err
	}

	log.Info("message created", "message_id", msg.ID)
	return msg, nil
}

func (s *Service) validateCreate(req CreateMessageRequest) (createInput, error) {
	if req.Text == nil {
		return createInput{}, domain.NewValidationError("text", "text is required and must be a non-empty string")
	}

	in := createInput{Text: strings.TrimSpace(*req.Text)}
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return createInput{}, domain.NewValidationError("text", "text must be at most 500 characters")
		}
		return createInput{}, domain.NewValidationError("text", "text is required and must be a non-empty string")
	}
	return in, nil
}

func (s *Service) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	id = domain.MessageID(strings.TrimSpace(string(id)))
	if id == "" {
		return domain.NewValidationError("id", "id is required")
	}

	log := observability.LoggerFromContext(ctx).With("message_id", id)
	if err := s.store.Delete(ctx, id); err != nil {
		log.Warn("failed to delete message", "error", err)
		return err
	}

	log.Info("message deleted")
	return nil
}

func (s *Service) Health(ctx context.Context) (domain.StoreHealth, error) {
	return s.store.Health(ctx)
}
