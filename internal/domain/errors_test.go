package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/msgboard/internal/domain"
)

func TestNormalizeText(t *testing.T) {
	t.Run("trims surrounding whitespace", func(t *testing.T) {
		text, err := domain.NormalizeText("  hello \n")
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	})

	t.Run("rejects blank text", func(t *testing.T) {
		_, err := domain.NormalizeText(" \t ")
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		text, err := domain.NormalizeText(strings.Repeat("é", domain.MaxTextLength))
		require.NoError(t, err)
		assert.Len(t, []rune(text), domain.MaxTextLength)
	})

	t.Run("rejects text over the limit", func(t *testing.T) {
		_, err := domain.NormalizeText(strings.Repeat("a", domain.MaxTextLength+1))
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "text", ve.Field)
	})
}

func TestConnectionErrorMatchesUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: lookup db.invalid: no such host")
	err := fmt.Errorf("list: %w", &domain.ConnectionError{Backend: "mongo", Category: domain.CategoryDNS, Err: cause})

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrConfigurationMissing)
}

func TestUnavailable(t *testing.T) {
	assert.NoError(t, domain.Unavailable(nil))

	err := domain.Unavailable(domain.ErrConfigurationMissing)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)

	already := &domain.ConnectionError{Backend: "mongo", Category: domain.CategoryOther, Err: errors.New("boom")}
	assert.Same(t, already, domain.Unavailable(already))
}
