package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"medverify/pkg/platform/circuit"
)

// Record is what the registry returned for a license number.
type Record struct {
	RegistrationNumber string
	FullName           string
	FatherName         string
	StatusText         string
	// ValidUntil is nil when the detail panel carried no date.
	ValidUntil *time.Time
	// RowCount is the number of rows the registry rendered; only the first
	// is used.
	RowCount int
}

// Observer receives session-level measurements.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	SessionStarted()
	SessionEnded()
	BreakerChanged(open bool)
	RetryAttempted()
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, time.Duration) {}
func (noopObserver) SessionStarted()                    {}
func (noopObserver) SessionEnded()                      {}
func (noopObserver) BreakerChanged(bool)                {}
func (noopObserver) RetryAttempted()                    {}

// Client runs one bounded registry lookup per call, each in its own
// session.
type Client struct {
	launcher  Launcher
	extractor *Extractor
	breaker   *circuit.Breaker
	observer  Observer
	logger    *slog.Logger
	tracer    trace.Tracer

	navigationTimeout time.Duration
	resultTimeout     time.Duration
	detailTimeout     time.Duration
	retries           int
}

// Option configures the Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithBreaker makes the client fail fast while the breaker is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithExtractor(x *Extractor) Option {
	return func(c *Client) {
		if x != nil {
			c.extractor = x
		}
	}
}

// WithTimeouts sets the navigation, result-wait and detail-wait bounds.
// Zero values keep the defaults.
func WithTimeouts(navigation, result, detail time.Duration) Option {
	return func(c *Client) {
		if navigation > 0 {
			c.navigationTimeout = navigation
		}
		if result > 0 {
			c.resultTimeout = result
		}
		if detail > 0 {
			c.detailTimeout = detail
		}
	}
}

// WithNavigationRetries allows n extra attempts, each with a fresh session,
// when launch or navigation fails.
func WithNavigationRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// NewClient creates a lookup client. Defaults: 30s navigation, 5s result
// wait, 10s detail wait, no retries.
func NewClient(launcher Launcher, opts ...Option) *Client {
	c := &Client{
		launcher:          launcher,
		extractor:         NewExtractor(DefaultSelectors(), nil),
		observer:          noopObserver{},
		logger:            slog.New(slog.DiscardHandler),
		tracer:            otel.Tracer("medverify/registry"),
		navigationTimeout: 30 * time.Second,
		resultTimeout:     5 * time.Second,
		detailTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup queries the registry for licenseNumber. A nil record with a nil
// error means the registry rendered no row within the result timeout.
// Failures are *SessionError or *ExtractionError.
func (c *Client) Lookup(ctx context.Context, licenseNumber string) (*Record, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, &SessionError{Kind: KindUnavailable, Op: "lookup", Err: errors.New("registry circuit open")}
	}

	var (
		record *Record
		err    error
	)
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.observer.RetryAttempted()
			c.logger.WarnContext(ctx, "retrying registry lookup",
				"attempt", attempt+1,
				"error", err,
			)
		}
		record, err = c.attempt(ctx, licenseNumber)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	c.recordBreaker(ctx, err)
	return record, err
}

func (c *Client) recordBreaker(ctx context.Context, err error) {
	if c.breaker == nil {
		return
	}
	var se *SessionError
	switch {
	case errors.As(err, &se) && se.Kind == KindCancelled:
		c.breaker.Release()
	case errors.As(err, &se):
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.observer.BreakerChanged(true)
			c.logger.ErrorContext(ctx, "registry circuit opened", "breaker", c.breaker.Name(), "error", err)
		}
	default:
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.observer.BreakerChanged(false)
			c.logger.InfoContext(ctx, "registry circuit closed", "breaker", c.breaker.Name())
		}
	}
}

// attempt runs one session. The session is closed on every exit path and
// also as soon as ctx is cancelled, so a blocked browser call unwinds.
func (c *Client) attempt(ctx context.Context, licenseNumber string) (*Record, error) {
	session, err := c.launchAndOpen(ctx)
	if err != nil {
		return nil, err
	}
	c.observer.SessionStarted()
	stopTeardown := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer func() {
		stopTeardown()
		if cerr := session.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "registry session close failed", "error", cerr)
		}
		c.observer.SessionEnded()
	}()

	row, rowCount, err := c.search(ctx, session, licenseNumber)
	if err != nil || rowCount == 0 {
		return nil, err
	}
	if rowCount > 1 {
		c.logger.InfoContext(ctx, "registry returned multiple rows, using first", "row_count", rowCount)
	}

	validUntil, err := c.detail(ctx, session)
	if err != nil {
		return nil, err
	}

	return &Record{
		RegistrationNumber: row.RegistrationNumber,
		FullName:           row.FullName,
		FatherName:         row.FatherName,
		StatusText:         row.StatusText,
		ValidUntil:         validUntil,
		RowCount:           rowCount,
	}, nil
}

func (c *Client) launchAndOpen(ctx context.Context) (Session, error) {
	spanCtx, span := c.tracer.Start(ctx, "registry.launch")
	defer span.End()
	start := time.Now()
	defer func() { c.observer.ObserveStage("launch", time.Since(start)) }()

	navCtx, cancel := context.WithTimeout(spanCtx, c.navigationTimeout)
	defer cancel()

	session, err := c.launcher.Launch(navCtx)
	if err != nil {
		err = classify(ctx, navCtx, "launch", err, KindLaunchFailed, KindLaunchFailed)
		endSpan(span, err)
		return nil, err
	}
	if err := session.Open(navCtx); err != nil {
		_ = session.Close()
		err = classify(ctx, navCtx, "navigate", err, KindNavigationTimeout, KindNavigationFailed)
		endSpan(span, err)
		return nil, err
	}
	return session, nil
}

func (c *Client) search(ctx context.Context, session Session, licenseNumber string) (Row, int, error) {
	spanCtx, span := c.tracer.Start(ctx, "registry.search")
	defer span.End()
	start := time.Now()
	defer func() { c.observer.ObserveStage("search", time.Since(start)) }()

	submitCtx, cancelSubmit := context.WithTimeout(spanCtx, c.navigationTimeout)
	defer cancelSubmit()
	if err := session.Search(submitCtx, licenseNumber); err != nil {
		err = classify(ctx, submitCtx, "search", err, KindInteractionFailed, KindInteractionFailed)
		endSpan(span, err)
		return Row{}, 0, err
	}

	resultCtx, cancelResult := context.WithTimeout(spanCtx, c.resultTimeout)
	defer cancelResult()
	markup, err := session.WaitForResult(resultCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(resultCtx.Err(), context.DeadlineExceeded) {
			// No distinct "no results" marker exists; silence is the answer.
			span.SetAttributes(attribute.Int("registry.rows", 0))
			return Row{}, 0, nil
		}
		err = classify(ctx, resultCtx, "wait_result", err, KindInteractionFailed, KindInteractionFailed)
		endSpan(span, err)
		return Row{}, 0, err
	}

	row, count, err := c.extractor.ResultRow(markup)
	span.SetAttributes(attribute.Int("registry.rows", count))
	if err != nil {
		endSpan(span, err)
		return Row{}, 0, err
	}
	return row, count, nil
}

func (c *Client) detail(ctx context.Context, session Session) (*time.Time, error) {
	spanCtx, span := c.tracer.Start(ctx, "registry.detail")
	defer span.End()
	start := time.Now()
	defer func() { c.observer.ObserveStage("detail", time.Since(start)) }()

	detailCtx, cancel := context.WithTimeout(spanCtx, c.detailTimeout)
	defer cancel()

	fail := func(err error) (*time.Time, error) {
		if ctx.Err() != nil {
			err = &SessionError{Kind: KindCancelled, Op: "detail", Err: ctx.Err()}
		} else {
			err = &ExtractionError{Stage: StageDetail, Err: err}
		}
		endSpan(span, err)
		return nil, err
	}

	if err := session.OpenDetail(detailCtx); err != nil {
		return fail(err)
	}
	markup, err := session.WaitForDetail(detailCtx)
	if err != nil {
		return fail(err)
	}

	validUntil, err := c.extractor.ValidUntil(markup)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	return validUntil, nil
}

// classify turns a stage failure into a SessionError. Caller cancellation
// wins over the stage's own deadline.
func classify(parent, stage context.Context, op string, err error, onTimeout, onFailure SessionErrorKind) error {
	switch {
	case parent.Err() != nil:
		return &SessionError{Kind: KindCancelled, Op: op, Err: parent.Err()}
	case errors.Is(stage.Err(), context.DeadlineExceeded):
		return &SessionError{Kind: onTimeout, Op: op, Err: err}
	default:
		return &SessionError{Kind: onFailure, Op: op, Err: err}
	}
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, FailureStage(err))
}
