package provider_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"invoicer/internal/domain"
	"invoicer/internal/provider"
)

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, provider.ParseRetryAfterHeader(""))
	assert.Equal(t, 30, provider.ParseRetryAfterHeader(" 30 "))
	assert.Equal(t, 0, provider.ParseRetryAfterHeader("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, 0, provider.ParseRetryAfterHeader("-5"))
}

func TestRetryAfterOf(t *testing.T) {
	rl := provider.NewRateLimitError("openrouter", errors.New("429"), 12)
	wrapped := provider.NewExtractionError("openrouter", domain.ErrorKindTransient, "rate limited", fmt.Errorf("post: %w", rl))

	assert.Equal(t, 12*time.Second, provider.RetryAfterOf(wrapped))
	assert.Zero(t, provider.RetryAfterOf(errors.New("other")))
	assert.Contains(t, rl.Error(), "openrouter rate limited (retry after 12s)")
}
