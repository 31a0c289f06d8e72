// Package brainreset sequences one brain reset request: validate, rate
// check, fetch notes, generate the reflection, write it back to Craft.
package brainreset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/models"
	"github.com/starford/brainreset/internal/ratelimit"
	"github.com/starford/brainreset/internal/validate"
)

// Stage is a state of the request pipeline.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageValidating   Stage = "validating"
	StageRateChecking Stage = "rate_checking"
	StageFetching     Stage = "fetching"
	StageGenerating   Stage = "generating"
	StageWriting      Stage = "writing"
	StageSucceeded    Stage = "succeeded"
	StageFailed       Stage = "failed"
)

// Terminal reports whether no further transition follows s.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// NoteFetcher reads the daily notes of a window.
type NoteFetcher interface {
	FetchDailyNotes(ctx context.Context, apiBase, token string, days int) ([]models.DailyNote, error)
}

// Generator produces the reflection text.
type Generator interface {
	Generate(ctx context.Context, notes []models.DailyNote, days int) (string, error)
}

// DocumentWriter stores the reflection and returns a deep link to it.
type DocumentWriter interface {
	CreateDocument(ctx context.Context, apiBase, token, markdown, targetDate string) (string, error)
}

// Transition describes one stage change of a request. Elapsed is the time
// spent in From. Err is set only when To is StageFailed.
type Transition struct {
	RequestID string
	From      Stage
	To        Stage
	Elapsed   time.Duration
	Notes     int
	Err       error
}

// Observer is notified of every transition, synchronously and in order.
type Observer interface {
	StageChanged(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

// StageChanged calls f.
func (f ObserverFunc) StageChanged(ctx context.Context, t Transition) { f(ctx, t) }

// MsgSavedWithoutLink explains an empty CraftURL: the reflection was
// written but Craft returned no block id to link to.
const MsgSavedWithoutLink = "Reflection saved to Craft, but no link is available"

// Result is the success payload. Message is set only when CraftURL is empty.
type Result struct {
	Success        bool   `json:"success"`
	CraftURL       string `json:"craftUrl"`
	NotesProcessed int    `json:"notesProcessed"`
	Message        string `json:"message,omitempty"`
}

// Service runs the pipeline. It holds no per-request state; the limiter is
// the only state shared between requests.
type Service struct {
	validator *validate.Validator
	limiter   ratelimit.Limiter
	fetcher   NoteFetcher
	generator Generator
	writer    DocumentWriter
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithObserver adds an observer of stage transitions.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the pipeline stages. A nil limiter allows everything.
func NewService(v *validate.Validator, limiter ratelimit.Limiter, fetcher NoteFetcher, gen Generator, writer DocumentWriter, opts ...Option) *Service {
	if limiter == nil {
		limiter = ratelimit.Nop{}
	}
	s := &Service{
		validator: v,
		limiter:   limiter,
		fetcher:   fetcher,
		generator: gen,
		writer:    writer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run tracks the current stage of one request.
type run struct {
	svc       *Service
	ctx       context.Context
	requestID string
	stage     Stage
	entered   time.Time
}

func (r *run) enter(next Stage, notes int, err error) {
	now := r.svc.now()
	t := Transition{
		RequestID: r.requestID,
		From:      r.stage,
		To:        next,
		Elapsed:   now.Sub(r.entered),
		Notes:     notes,
		Err:       err,
	}
	r.stage = next
	r.entered = now
	for _, o := range r.svc.observers {
		o.StageChanged(r.ctx, t)
	}
}

// fail moves the run to StageFailed, logs the full error and returns it
// classified. Errors without a kind become KindUnknown.
func (r *run) fail(op string, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		err = apperr.New(apperr.KindUnknown, op, err)
	}
	r.svc.logger.Error("brain reset failed",
		slog.String("request_id", r.requestID),
		slog.String("stage", string(r.stage)),
		slog.String("kind", apperr.KindOf(err).String()),
		slog.String("error", err.Error()))
	r.enter(StageFailed, 0, err)
	return err
}

// Run executes one request for the caller identified by clientKey. The
// returned error is always an *apperr.Error.
func (s *Service) Run(ctx context.Context, requestID, clientKey string, raw validate.RawRequest) (*Result, error) {
	r := &run{svc: s, ctx: ctx, requestID: requestID, stage: StageIdle, entered: s.now()}

	r.enter(StageValidating, 0, nil)
	req, err := s.validator.Request(raw)
	if err != nil {
		return nil, r.fail("validate", err)
	}

	r.enter(StageRateChecking, 0, nil)
	if !s.limiter.Allow(clientKey) {
		return nil, r.fail("ratelimit", apperr.New(apperr.KindRateLimited, "ratelimit",
			fmt.Errorf("client %q exceeded the request limit", clientKey)))
	}

	days := validate.SnapDays(req.Days)
	if days != req.Days {
		s.logger.Info("brain reset: period clamped",
			slog.String("request_id", requestID), slog.Int("requested", req.Days), slog.Int("days", days))
	}

	r.enter(StageFetching, 0, nil)
	notes, err := s.fetcher.FetchDailyNotes(ctx, req.APIBase, req.AccessToken, days)
	if err != nil {
		return nil, r.fail("fetch", err)
	}
	if len(notes) == 0 {
		return nil, r.fail("fetch", apperr.New(apperr.KindNotFound, "fetch",
			fmt.Errorf("no daily notes found in the last %d days", days)))
	}
	s.logger.Info("brain reset: notes fetched",
		slog.String("request_id", requestID), slog.Int("notes", len(notes)), slog.Int("days", days))

	r.enter(StageGenerating, len(notes), nil)
	text, err := s.generator.Generate(ctx, notes, days)
	if err != nil {
		return nil, r.fail("generate", err)
	}

	r.enter(StageWriting, len(notes), nil)
	link, err := s.writer.CreateDocument(ctx, req.APIBase, req.AccessToken, text, models.LatestDate(notes))
	if err != nil {
		return nil, r.fail("write", err)
	}

	r.enter(StageSucceeded, len(notes), nil)
	s.logger.Info("brain reset complete",
		slog.String("request_id", requestID), slog.Int("notes", len(notes)))

	res := &Result{Success: true, CraftURL: link, NotesProcessed: len(notes)}
	if link == "" {
		s.logger.Warn("brain reset: saved without a link", slog.String("request_id", requestID))
		res.Message = MsgSavedWithoutLink
	}
	return res, nil
}
