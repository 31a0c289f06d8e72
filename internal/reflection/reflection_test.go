package reflection

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/models"
	"github.com/starford/brainreset/internal/testutil"
)

var monday = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

func newTestGenerator(f *testutil.FakeAI, key string) *Generator {
	return New(Config{BaseURL: f.BaseURL(), Model: "test-model", APIKeyEnv: "UNUSED"},
		WithKeySource(func() string { return key }),
		WithClock(func() time.Time { return monday }),
	)
}

func sampleNotes() []models.DailyNote {
	return []models.DailyNote{
		{Date: "2026-10-19", Content: "shipped v2"},
		{Date: "2026-10-17", Content: "planned release"},
		{Date: "2026-10-18", Content: "fixed bugs"},
	}
}

func TestCombineNotes_SortsAndJoins(t *testing.T) {
	notes := sampleNotes()
	got := CombineNotes(notes)

	want := "## 2026-10-17\nplanned release\n\n---\n\n## 2026-10-18\nfixed bugs\n\n---\n\n## 2026-10-19\nshipped v2"
	assert.Equal(t, want, got)
	assert.Equal(t, "2026-10-19", notes[0].Date, "input must not be reordered")
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "daily", PeriodLabel(1))
	assert.Equal(t, "weekly", PeriodLabel(7))
	assert.Equal(t, "bi-weekly", PeriodLabel(14))
	assert.Equal(t, "monthly", PeriodLabel(30))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Weekly Brain Reset (Week 43, 2026)", Title(7, monday))
	assert.Equal(t, "Bi-Weekly Brain Reset (Weeks 41-43, 2026)", Title(14, monday))

	newYear := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Monthly Brain Reset (Week 49, 2025 to Week 2, 2026)", Title(30, newYear))
}

func TestSystemPrompt_HasAllSections(t *testing.T) {
	p := SystemPrompt(7, monday)
	for _, s := range Sections {
		assert.Contains(t, p, s)
	}
	assert.Contains(t, p, "weekly notes")
	assert.Contains(t, p, "# Weekly Brain Reset")
}

func TestGenerate_Success(t *testing.T) {
	f := testutil.NewFakeAI(t)
	f.Reply = "# Weekly Brain Reset\n..."
	g := newTestGenerator(f, "sk-test")

	out, err := g.Generate(context.Background(), sampleNotes(), 7)
	require.NoError(t, err)
	assert.Equal(t, "# Weekly Brain Reset\n...", out)

	call := f.LastCall()
	assert.Equal(t, "Bearer sk-test", call.Auth)
	assert.Equal(t, "test-model", call.Model)
	require.Len(t, call.Messages, 2)
	assert.Equal(t, "system", call.Messages[0].Role)
	assert.Equal(t, "user", call.Messages[1].Role)
	assert.True(t, strings.HasPrefix(call.Messages[1].Content, "Here are my daily notes from the past 7 days."))
	assert.Less(t,
		strings.Index(call.Messages[1].Content, "2026-10-17"),
		strings.Index(call.Messages[1].Content, "2026-10-19"))
}

func TestGenerate_MissingKey(t *testing.T) {
	f := testutil.NewFakeAI(t)
	g := newTestGenerator(f, "")

	_, err := g.Generate(context.Background(), sampleNotes(), 7)
	assert.ErrorIs(t, err, apperr.ErrAIConfig)
	assert.Equal(t, 0, f.CallCount())
}

func TestGenerate_ReadsKeyFromEnvironment(t *testing.T) {
	f := testutil.NewFakeAI(t)
	t.Setenv("BRAINRESET_TEST_KEY", "sk-env")
	g := New(Config{BaseURL: f.BaseURL(), Model: "m", APIKeyEnv: "BRAINRESET_TEST_KEY"})

	_, err := g.Generate(context.Background(), sampleNotes(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-env", f.LastCall().Auth)
}

func TestGenerate_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, apperr.ErrAIRateLimited},
		{http.StatusPaymentRequired, apperr.ErrAIQuotaExhausted},
		{http.StatusInternalServerError, apperr.ErrAIService},
		{http.StatusBadRequest, apperr.ErrAIService},
	}
	for _, tc := range cases {
		f := testutil.NewFakeAI(t)
		f.Status = tc.status
		g := newTestGenerator(f, "sk")

		_, err := g.Generate(context.Background(), sampleNotes(), 7)
		require.Error(t, err)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)

		var ae *apperr.Error
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, tc.status, ae.Status)
		assert.Equal(t, 1, f.CallCount(), "no retries")
	}
}

func TestGenerate_TimeoutIsServiceError(t *testing.T) {
	f := testutil.NewFakeAI(t)
	f.Delay = 5 * time.Second
	g := New(Config{BaseURL: f.BaseURL(), Model: "m", APIKeyEnv: "X", Timeout: 100 * time.Millisecond},
		WithKeySource(func() string { return "sk" }))

	start := time.Now()
	_, err := g.Generate(context.Background(), sampleNotes(), 7)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, err, apperr.ErrAIService)
	assert.Equal(t, apperr.MsgAIService, apperr.SafeMessage(err))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
}

func TestGenerate_MissingContentFallsBack(t *testing.T) {
	f := testutil.NewFakeAI(t)
	f.Body = `{"choices":[]}`
	g := newTestGenerator(f, "sk")

	out, err := g.Generate(context.Background(), sampleNotes(), 7)
	require.NoError(t, err)
	assert.Equal(t, Fallback, out)
}

func TestGenerate_Paced(t *testing.T) {
	f := testutil.NewFakeAI(t)
	g := New(Config{BaseURL: f.BaseURL(), Model: "m", APIKeyEnv: "X", RequestsPerSecond: 0.001, Burst: 1},
		WithKeySource(func() string { return "sk" }))

	_, err := g.Generate(context.Background(), sampleNotes(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, sampleNotes(), 7)
	assert.ErrorIs(t, err, apperr.ErrAIService)
	assert.Equal(t, 1, f.CallCount())
}
