// Package apperr defines the failure kinds of a brain reset request and
// their mapping to caller-safe messages and HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindRateLimited
	KindNotFound
	KindAIConfig
	KindAIRateLimited
	KindAIQuotaExhausted
	KindAIService
	KindWrite
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindValidation:       "validation",
	KindUnauthorized:     "unauthorized",
	KindRateLimited:      "rate_limited",
	KindNotFound:         "not_found",
	KindAIConfig:         "ai_config",
	KindAIRateLimited:    "ai_rate_limited",
	KindAIQuotaExhausted: "ai_quota_exhausted",
	KindAIService:        "ai_service",
	KindWrite:            "write",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinels usable with errors.Is.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAIConfig         = &Error{Kind: KindAIConfig}
	ErrAIRateLimited    = &Error{Kind: KindAIRateLimited}
	ErrAIQuotaExhausted = &Error{Kind: KindAIQuotaExhausted}
	ErrAIService        = &Error{Kind: KindAIService}
	ErrWrite            = &Error{Kind: KindWrite}
)

// Error is a classified failure. Status is the upstream HTTP status for
// KindAIService and KindWrite (0 when the call never got a response).
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

// New returns an Error of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithStatus returns an Error of the given kind carrying an upstream status.
func WithStatus(kind Kind, op string, status int, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so the package sentinels work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Caller-facing messages.
const (
	MsgValidation   = "Invalid request. Please check your Craft link, token and period."
	MsgUnauthorized = "Unauthorized"
	MsgRateLimited  = "Too many requests. Please wait a minute and try again."
	MsgNotFound     = "No daily notes found for the selected period"
	MsgAIConfig     = "AI service is temporarily unavailable. Please try again later."
	MsgAIRateLimit  = "The AI service is busy right now. Please try again in a moment."
	MsgAIQuota      = "The AI service has reached its usage limit. Please try again later."
	MsgAIService    = "The AI service failed to generate your reflection. Please try again."
	MsgWrite        = "Failed to save the reflection to Craft. Please check your connection and try again."
	MsgAuthToken    = "Craft rejected the request. Please check your API token."
	MsgUnknown      = "An unexpected error occurred. Please try again."
)

// SafeMessage returns the message that may be shown to the caller for err.
// Validation errors expose their own text because it only describes the
// caller's input.
func SafeMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return messageByKeyword(err)
	}
	switch e.Kind {
	case KindValidation:
		if e.Err != nil {
			return e.Err.Error()
		}
		return MsgValidation
	case KindUnauthorized:
		return MsgUnauthorized
	case KindRateLimited:
		return MsgRateLimited
	case KindNotFound:
		return MsgNotFound
	case KindAIConfig:
		return MsgAIConfig
	case KindAIRateLimited:
		return MsgAIRateLimit
	case KindAIQuotaExhausted:
		return MsgAIQuota
	case KindAIService:
		return MsgAIService
	case KindWrite:
		if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
			return MsgAuthToken
		}
		return MsgWrite
	case KindUnknown:
		return messageByKeyword(err)
	}
	return MsgUnknown
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// keywordRules are checked in order; the first rule with a matching
// keyword decides the message.
var keywordRules = []struct {
	keywords []string
	message  string
}{
	{[]string{"ai service", "not configured", "api key"}, MsgAIConfig},
	{[]string{"rate limit", "too many requests"}, MsgAIRateLimit},
	{[]string{"credits", "quota", "payment required"}, MsgAIQuota},
	{[]string{"craft", "failed to create document", "write"}, MsgWrite},
	{[]string{"token", "unauthorized", "forbidden"}, MsgAuthToken},
	{[]string{"no daily notes"}, MsgNotFound},
	{[]string{"invalid", "validation"}, MsgValidation},
}

func messageByKeyword(err error) string {
	if err == nil {
		return MsgUnknown
	}
	text := strings.ToLower(err.Error())
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.message
			}
		}
	}
	return MsgUnknown
}
