package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs_MatchesKind(t *testing.T) {
	err := fmt.Errorf("stage: %w", WithStatus(KindAIService, "generate", 503, errors.New("boom")))

	assert.True(t, errors.Is(err, ErrAIService))
	assert.False(t, errors.Is(err, ErrWrite))
	assert.Equal(t, KindAIService, KindOf(err))
}

func TestError_MessageCarriesDetail(t *testing.T) {
	err := WithStatus(KindWrite, "craft.create", 500, errors.New("server exploded"))
	assert.Equal(t, "craft.create: write (status 500): server exploded", err.Error())
}

func TestSafeMessage_TypedKinds(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{New(KindUnauthorized, "", nil), MsgUnauthorized},
		{New(KindRateLimited, "", nil), MsgRateLimited},
		{New(KindNotFound, "", nil), MsgNotFound},
		{New(KindAIConfig, "", errors.New("AI_API_KEY not set")), MsgAIConfig},
		{WithStatus(KindAIRateLimited, "", 429, nil), MsgAIRateLimit},
		{WithStatus(KindAIQuotaExhausted, "", 402, nil), MsgAIQuota},
		{WithStatus(KindAIService, "", 500, errors.New("upstream body with secrets")), MsgAIService},
		{WithStatus(KindWrite, "", 500, nil), MsgWrite},
		{WithStatus(KindWrite, "", 401, nil), MsgAuthToken},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SafeMessage(tc.err), "kind %s", KindOf(tc.err))
	}
}

func TestSafeMessage_ValidationExposesInputProblem(t *testing.T) {
	err := New(KindValidation, "validate", errors.New("craftToken: must be between 10 and 1000 characters"))
	assert.Equal(t, "craftToken: must be between 10 and 1000 characters", SafeMessage(err))
}

func TestSafeMessage_KeywordPriority(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		// AI keywords win over rate-limit keywords.
		{"AI service rate limit exceeded", MsgAIConfig},
		{"Rate limit exceeded. Please try again in a moment.", MsgAIRateLimit},
		{"credits exhausted", MsgAIQuota},
		{"failed to create document: 500", MsgWrite},
		{"invalid token", MsgAuthToken},
		{"No daily notes found", MsgNotFound},
		{"invalid server link", MsgValidation},
		{"dial tcp: connection refused", MsgUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SafeMessage(errors.New(tc.text)), tc.text)
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrUnauthorized))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(ErrRateLimited))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrAIQuotaExhausted))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
