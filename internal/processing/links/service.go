package links

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/events"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultViewWriteTimeout = 2 * time.Second

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// reservedIDs are served by fixed routes, so links stored under them could
// never be resolved.
var reservedIDs = map[string]bool{
	"health":  true,
	"metrics": true,
}

type Service struct {
	repo        LinkRepository
	publisher   EventPublisher
	tracer      trace.Tracer
	asyncEvents bool
	viewTimeout time.Duration
	rejectSelf  bool
	now         func() time.Time

	inflight sync.WaitGroup
}

type ServiceOptions struct {
	// AsyncEvents publishes events after the call returns. View increments
	// are always persisted before Resolve returns.
	AsyncEvents bool
	// ViewWriteTimeout bounds the detached view write and event publishes.
	ViewWriteTimeout time.Duration
	// RejectSelfHost refuses destinations whose host equals the request host.
	RejectSelfHost bool
	Publisher      EventPublisher
}

func NewService(repo LinkRepository, opts ServiceOptions) *Service {
	if opts.ViewWriteTimeout <= 0 {
		opts.ViewWriteTimeout = defaultViewWriteTimeout
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}

	return &Service{
		repo:        repo,
		publisher:   opts.Publisher,
		tracer:      otel.Tracer("links"),
		asyncEvents: opts.AsyncEvents,
		viewTimeout: opts.ViewWriteTimeout,
		rejectSelf:  opts.RejectSelfHost,
		now:         time.Now,
	}
}

// Resolve decides whether id redirects. On success the returned record is the
// one read before the view increment. The increment is written before Resolve
// returns but detached from ctx cancellation, so a client hanging up cannot
// abort it.
func (s *Service) Resolve(ctx context.Context, id string) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "links.resolve", trace.WithAttributes(attribute.String("link.id", id)))
	defer span.End()

	rec, err := s.evaluate(ctx, id)
	resolutionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		markSpan(span, err)
		return Record{}, err
	}

	viewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.viewTimeout)
	updated, counted := s.recordView(viewCtx, id, rec)
	cancel()
	if counted {
		s.publishVisited(ctx, id, updated)
	}
	return rec, nil
}

// Inspect applies the same policy as Resolve without counting a view.
func (s *Service) Inspect(ctx context.Context, id string) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "links.inspect", trace.WithAttributes(attribute.String("link.id", id)))
	defer span.End()

	rec, err := s.evaluate(ctx, id)
	if err != nil {
		markSpan(span, err)
		return Record{}, err
	}
	return rec, nil
}

// Details returns the stored record whatever its state.
func (s *Service) Details(ctx context.Context, id string) (Details, error) {
	ctx, span := s.tracer.Start(ctx, "links.details", trace.WithAttributes(attribute.String("link.id", id)))
	defer span.End()

	rec, err := s.fetch(ctx, id)
	if err != nil {
		markSpan(span, err)
		return Details{}, err
	}
	return Details{ID: id, Record: rec, Status: rec.Status(s.now())}, nil
}

func (s *Service) Upsert(ctx context.Context, id string, in UpsertInput) (UpsertResult, error) {
	ctx, span := s.tracer.Start(ctx, "links.upsert", trace.WithAttributes(
		attribute.String("link.id", id),
		attribute.Bool("link.overwrite", in.Overwrite),
	))
	defer span.End()

	res, err := s.upsert(ctx, id, in)
	op := "upsert"
	switch {
	case err == nil && res.Created:
		op = "create"
	case err == nil:
		op = "update"
	}
	mutationsTotal.WithLabelValues(op, outcomeLabel(err)).Inc()
	if err != nil {
		markSpan(span, err)
		return UpsertResult{}, err
	}

	action := events.ActionUpdated
	if res.Created {
		action = events.ActionCreated
	}
	s.publishChanged(ctx, id, action, res.Record.Revision)
	return res, nil
}

func (s *Service) upsert(ctx context.Context, id string, in UpsertInput) (UpsertResult, error) {
	destination, err := s.validateUpsert(id, in)
	if err != nil {
		return UpsertResult{}, err
	}

	existing, err := s.repo.Fetch(ctx, id)
	exists := true
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		exists = false
	case errors.Is(err, ErrMalformedRecord):
		// Corrupt data still occupies the identifier; only overwrite replaces it.
		logger.Warn("malformed link record on upsert", zap.String("id", id), zap.Error(err))
		existing = Record{}
	default:
		return UpsertResult{}, err
	}
	if exists && !in.Overwrite {
		return UpsertResult{}, ErrConflict
	}

	now := s.now().UTC()
	rec := Record{
		URL:             destination,
		ExpiryTimestamp: in.ExpiryTimestamp,
		MaxViews:        in.MaxViews,
		Disabled:        in.Disabled,
		Revision:        uuid.NewString(),
		CreatedAt:       now.Unix(),
		ModifiedAt:      now.Unix(),
	}
	if in.ExpireIn > 0 {
		expiry := now.Add(in.ExpireIn).Unix()
		rec.ExpiryTimestamp = &expiry
	}
	if exists && existing.CreatedAt > 0 {
		rec.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.Store(ctx, id, rec); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Record: rec, Created: !exists}, nil
}

// Delete removes the record. An absent identifier yields ErrNotFound so
// callers can tell a no-op apart.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "links.delete", trace.WithAttributes(attribute.String("link.id", id)))
	defer span.End()

	err := s.delete(ctx, id)
	mutationsTotal.WithLabelValues("delete", outcomeLabel(err)).Inc()
	if err != nil {
		markSpan(span, err)
		return err
	}

	s.publishChanged(ctx, id, events.ActionDeleted, "")
	return nil
}

func (s *Service) delete(ctx context.Context, id string) error {
	if !identifierRe.MatchString(id) {
		return ErrNotFound
	}

	_, err := s.repo.Fetch(ctx, id)
	if err != nil && !errors.Is(err, ErrMalformedRecord) {
		return err
	}
	return s.repo.Remove(ctx, id)
}

// Wait blocks until detached event publishes have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) evaluate(ctx context.Context, id string) (Record, error) {
	rec, err := s.fetch(ctx, id)
	if err != nil {
		return Record{}, err
	}

	switch rec.Status(s.now()) {
	case StatusDisabled:
		return Record{}, ErrDisabled
	case StatusExpired:
		return Record{}, ErrExpired
	case StatusExhausted:
		return Record{}, ErrExhausted
	}
	return rec, nil
}

func (s *Service) fetch(ctx context.Context, id string) (Record, error) {
	if !identifierRe.MatchString(id) {
		return Record{}, ErrNotFound
	}

	rec, err := s.repo.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			logger.Warn("malformed link record", zap.String("id", id), zap.Error(err))
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) recordView(ctx context.Context, id string, snapshot Record) (Record, bool) {
	updated, err := s.repo.IncrementViews(ctx, id, snapshot)
	switch {
	case err == nil:
		viewWritesTotal.WithLabelValues("ok").Inc()
		return updated, true
	case errors.Is(err, ErrStaleRecord), errors.Is(err, ErrNotFound), errors.Is(err, ErrExhausted):
		viewWritesTotal.WithLabelValues("skipped").Inc()
		logger.Debug("view increment skipped", zap.String("id", id), zap.Error(err))
	default:
		viewWritesTotal.WithLabelValues("failed").Inc()
		logger.Warn("failed to record view", zap.String("id", id), zap.Error(err))
	}
	return Record{}, false
}

func (s *Service) publishVisited(ctx context.Context, id string, updated Record) {
	ev := events.LinkVisited{
		EventID:    uuid.NewString(),
		LinkID:     id,
		Views:      updated.Views,
		OccurredAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	s.detach(ctx, func(ctx context.Context) {
		if err := s.publisher.PublishVisited(ctx, ev); err != nil {
			logger.Warn("failed to publish visit event", zap.String("id", id), zap.Error(err))
		}
	})
}

func (s *Service) publishChanged(ctx context.Context, id, action, revision string) {
	ev := events.LinkChanged{
		EventID:    uuid.NewString(),
		LinkID:     id,
		Action:     action,
		Revision:   revision,
		OccurredAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	s.detach(ctx, func(ctx context.Context) {
		if err := s.publisher.PublishChanged(ctx, ev); err != nil {
			logger.Warn("failed to publish change event", zap.String("id", id), zap.String("action", action), zap.Error(err))
		}
	})
}

// detach runs fn with a context that survives request cancellation, either
// inline or in a goroutine tracked by Wait.
func (s *Service) detach(ctx context.Context, fn func(context.Context)) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.viewTimeout)
		defer cancel()
		fn(ctx)
	}
	if !s.asyncEvents {
		run()
		return
	}
	s.inflight.Go(run)
}

func (s *Service) validateUpsert(id string, in UpsertInput) (string, error) {
	if !identifierRe.MatchString(id) {
		return "", &ValidationError{Field: "id", Reason: "must be 1-128 characters of letters, digits, '-' or '_'"}
	}
	if reservedIDs[strings.ToLower(id)] {
		return "", &ValidationError{Field: "id", Reason: "is reserved"}
	}

	destination := strings.TrimSpace(in.URL)
	if err := validateDestination(destination); err != nil {
		return "", &ValidationError{Field: "url", Reason: err.Error()}
	}
	if s.rejectSelf && in.RequestHost != "" {
		u, _ := url.Parse(destination)
		if strings.EqualFold(u.Hostname(), hostOnly(in.RequestHost)) {
			return "", &ValidationError{Field: "url", Reason: "cannot redirect to the host serving this link"}
		}
	}

	if in.ExpiryTimestamp != nil && *in.ExpiryTimestamp < 0 {
		return "", &ValidationError{Field: "expiry_timestamp", Reason: "must be a non-negative unix timestamp"}
	}
	if in.ExpireIn < 0 {
		return "", &ValidationError{Field: "expire_in", Reason: "must be positive"}
	}
	if in.ExpireIn > 0 && in.ExpiryTimestamp != nil {
		return "", &ValidationError{Field: "expire_in", Reason: "cannot be combined with expiry_timestamp"}
	}
	return destination, nil
}

func hostOnly(hostport string) string {
	u := url.URL{Host: hostport}
	return u.Hostname()
}

func markSpan(span trace.Span, err error) {
	if errors.Is(err, ErrStorage) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failure")
		return
	}
	span.SetAttributes(attribute.String("link.outcome", outcomeLabel(err)))
}
