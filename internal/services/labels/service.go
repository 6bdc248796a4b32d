package labels

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/LabelBox/internal/broker/messages"
	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OMS is the part of the order-management API the workflow uses.
type OMS interface {
	Shipment(ctx context.Context, id models.ID) (*models.Shipment, error)
	Seller(ctx context.Context, id models.ID) (*models.Party, error)
	Context(ctx context.Context, id models.ID) (*models.Party, error)
	ShipmentWriter
	MessageLog
}

type EventMarks interface {
	Done(ctx context.Context, eventID models.ID) (string, bool, error)
	MarkDone(ctx context.Context, eventID models.ID, outcome string, ttl time.Duration) error
}

type RateLimiter interface {
	AllowCall(ctx context.Context, carrierName string, at time.Time, perMinute int64) (bool, int64, error)
}

type Journal interface {
	RecordRun(ctx context.Context, run models.LabelRun) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Recorder interface {
	ObserveRun(outcome string)
	ObserveCarrierCall(result string, d time.Duration)
	NotificationFailed()
}

type Service struct {
	oms      OMS
	resolver ConfigResolver
	carrier  carrier.Client

	mapper     *Mapper
	notifier   *Notifier
	reconciler *Reconciler

	carrierName   string
	defaultSender *models.Party

	marks    EventMarks
	dedupTTL time.Duration

	rl                 RateLimiter
	rateLimitPerMinute int64
	throttlePause      time.Duration

	journal  Journal
	producer Producer
	topic    string
	metrics  Recorder

	now func() time.Time

	startedAt     time.Time
	totalRuns     atomic.Int64
	totalLabeled  atomic.Int64
	totalRejected atomic.Int64
	totalFailed   atomic.Int64
	totalSkipped  atomic.Int64
	inFlight      atomic.Int64
	lastRunAtNano atomic.Int64
	lastErrorMu   sync.Mutex
	lastError     string
}

func New(oms OMS, resolver ConfigResolver, cc carrier.Client, carrierName string) *Service {
	s := &Service{
		oms:           oms,
		resolver:      resolver,
		carrier:       cc,
		carrierName:   carrierName,
		dedupTTL:      7 * 24 * time.Hour,
		throttlePause: 500 * time.Millisecond,
		metrics:       noopRecorder{},
		now:           time.Now,
		startedAt:     time.Now().UTC(),
	}
	s.rebuild()
	return s
}

func (s *Service) rebuild() {
	s.mapper = NewMapper(s.now)
	s.notifier = NewNotifier(s.oms, s.now)
	s.reconciler = NewReconciler(s.oms, s.notifier)
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
		s.rebuild()
	}
	return s
}

// WithDefaultSender sets the sender used for shipments without a seller.
func (s *Service) WithDefaultSender(p *models.Party) *Service {
	s.defaultSender = p
	return s
}

func (s *Service) WithEventMarks(m EventMarks, ttl time.Duration) *Service {
	s.marks = m
	if ttl > 0 {
		s.dedupTTL = ttl
	}
	return s
}

func (s *Service) WithRateLimit(rl RateLimiter, perMinute int64, pause time.Duration) *Service {
	s.rl = rl
	s.rateLimitPerMinute = perMinute
	if pause > 0 {
		s.throttlePause = pause
	}
	return s
}

func (s *Service) WithJournal(j Journal) *Service {
	s.journal = j
	return s
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

func (s *Service) WithMetrics(m Recorder) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Handle runs one label invocation for the trigger.
func (s *Service) Handle(ctx context.Context, req messages.LabelRequested) (Outcome, error) {
	if req.ShipmentID == "" || req.EventID == "" {
		return Outcome{}, errors.Wrap(ErrInvalidTrigger, "shipmentId and eventId are required")
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	startedAt := s.now().UTC()
	s.lastRunAtNano.Store(startedAt.UnixNano())

	if prev, done := s.alreadyDone(ctx, req.EventID); done {
		s.totalSkipped.Add(1)
		slog.Info("event already handled", "event_id", req.EventID, "outcome", prev)
		return Outcome{Result: ResultDone, Kind: prev, Skipped: true}, nil
	}
	s.totalRuns.Add(1)

	out, err := s.run(ctx, req)
	switch {
	case err == nil:
	case IsMappingError(err):
		out = s.mappingFailed(ctx, req, err)
	default:
		out = Outcome{Kind: messages.OutcomeTransportFailure}
	}
	s.finish(ctx, req, startedAt, out, err)
	return out, err
}

func (s *Service) run(ctx context.Context, req messages.LabelRequested) (Outcome, error) {
	setup, err := s.resolver.Resolve(ctx, s.carrierName)
	if err != nil {
		return Outcome{}, err
	}

	sh, err := s.oms.Shipment(ctx, req.ShipmentID)
	if err != nil {
		if isNotFound(err) {
			return Outcome{}, &ShipmentNotFoundError{ShipmentID: req.ShipmentID}
		}
		return Outcome{}, err
	}

	sender, err := s.resolveSender(ctx, sh, req.ContextID)
	if err != nil {
		return Outcome{}, err
	}

	creq, err := s.mapper.BuildRequest(sh, sender, setup)
	if err != nil {
		return Outcome{}, err
	}

	if err := s.throttle(ctx); err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	res, err := s.carrier.CreateShipment(ctx, creq)
	if err != nil {
		s.metrics.ObserveCarrierCall("transport_failure", time.Since(start))
		return Outcome{}, err
	}
	s.metrics.ObserveCarrierCall(string(res.Kind), time.Since(start))

	return s.reconciler.Reconcile(ctx, req.EventID, sh, res)
}

// resolveSender picks the seller, the configured default sender or the OMS
// context, in that order. Exactly one lookup is made.
func (s *Service) resolveSender(ctx context.Context, sh *models.Shipment, contextID models.ID) (models.Party, error) {
	if sh.SellerID != nil && *sh.SellerID != "" {
		p, err := s.oms.Seller(ctx, *sh.SellerID)
		if err != nil {
			if isNotFound(err) {
				return models.Party{}, &SellerNotFoundError{SellerID: *sh.SellerID}
			}
			return models.Party{}, err
		}
		return *p, nil
	}
	if s.defaultSender != nil {
		return *s.defaultSender, nil
	}
	if contextID == "" {
		return models.Party{}, errors.Wrap(ErrInvalidTrigger, "contextId is required for shipments without seller")
	}
	p, err := s.oms.Context(ctx, contextID)
	if err != nil {
		return models.Party{}, errors.Wrapf(err, "get context %s", contextID)
	}
	return *p, nil
}

func (s *Service) throttle(ctx context.Context) error {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return nil
	}
	allowed, n, err := s.rl.AllowCall(ctx, s.carrierName, s.now(), s.rateLimitPerMinute)
	if err != nil {
		slog.Warn("carrier rate limit check", "error", err.Error())
		return nil
	}
	if allowed {
		return nil
	}
	slog.Warn("carrier rate limit exceeded", "carrier", s.carrierName, "count", n)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.throttlePause):
		return nil
	}
}

func (s *Service) mappingFailed(ctx context.Context, req messages.LabelRequested, cause error) Outcome {
	text := cause.Error()
	return Outcome{
		Result:    ResultDone,
		Kind:      messages.OutcomeMappingFailed,
		Message:   text,
		NotifyErr: s.notifier.Notify(ctx, req.EventID, models.MessageTypeError, text),
	}
}

func (s *Service) alreadyDone(ctx context.Context, eventID models.ID) (string, bool) {
	if s.marks == nil {
		return "", false
	}
	prev, done, err := s.marks.Done(ctx, eventID)
	if err != nil {
		slog.Warn("read event mark", "event_id", eventID, "error", err.Error())
		return "", false
	}
	return prev, done
}

func (s *Service) finish(ctx context.Context, req messages.LabelRequested, startedAt time.Time, out Outcome, runErr error) {
	finishedAt := s.now().UTC()

	switch out.Kind {
	case messages.OutcomeLabeled:
		s.totalLabeled.Add(1)
	case messages.OutcomeRejected, messages.OutcomeParcelMismatch:
		s.totalRejected.Add(1)
	default:
		s.totalFailed.Add(1)
	}
	s.metrics.ObserveRun(out.Kind)

	var errText *string
	if runErr != nil {
		e := runErr.Error()
		errText = &e
		s.lastErrorMu.Lock()
		s.lastError = e
		s.lastErrorMu.Unlock()
		slog.Error("label run failed", "shipment_id", req.ShipmentID, "event_id", req.EventID,
			"retryable", IsRetryable(runErr), "error", e)
	}
	if out.NotifyErr != nil {
		s.metrics.NotificationFailed()
		slog.Error("post event message", "event_id", req.EventID, "error", out.NotifyErr.Error())
	}

	if out.Result == ResultDone && s.marks != nil {
		if err := s.marks.MarkDone(ctx, req.EventID, out.Kind, s.dedupTTL); err != nil {
			slog.Warn("mark event done", "event_id", req.EventID, "error", err.Error())
		}
	}

	if s.journal != nil {
		run := models.LabelRun{
			ID:              uuid.NewString(),
			ShipmentID:      req.ShipmentID,
			EventID:         req.EventID,
			Outcome:         out.Kind,
			ConsignmentID:   out.ConsignmentID,
			TrackingNumbers: out.TrackingNumbers,
			Error:           errText,
			StartedAt:       startedAt,
			FinishedAt:      finishedAt,
		}
		if err := s.journal.RecordRun(ctx, run); err != nil {
			slog.Warn("record label run", "shipment_id", req.ShipmentID, "error", err.Error())
		}
	}

	if s.producer != nil && s.topic != "" {
		msg := messages.LabelOutcome{
			ShipmentID:      req.ShipmentID,
			EventID:         req.EventID,
			Outcome:         out.Kind,
			FinishedAt:      finishedAt,
			ConsignmentID:   out.ConsignmentID,
			TrackingNumbers: out.TrackingNumbers,
			Error:           errText,
		}
		b, err := json.Marshal(msg)
		if err != nil {
			slog.Warn("marshal label outcome", "error", err.Error())
			return
		}
		if err := s.producer.Publish(ctx, s.topic, []byte(req.ShipmentID), b); err != nil {
			slog.Warn("publish label outcome", "shipment_id", req.ShipmentID, "error", err.Error())
		}
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	TotalRuns     int64      `json:"totalRuns"`
	TotalLabeled  int64      `json:"totalLabeled"`
	TotalRejected int64      `json:"totalRejected"`
	TotalFailed   int64      `json:"totalFailed"`
	TotalSkipped  int64      `json:"totalSkipped"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		StartedAt:     s.startedAt,
		TotalRuns:     s.totalRuns.Load(),
		TotalLabeled:  s.totalLabeled.Load(),
		TotalRejected: s.totalRejected.Load(),
		TotalFailed:   s.totalFailed.Load(),
		TotalSkipped:  s.totalSkipped.Load(),
		InFlight:      s.inFlight.Load(),
	}
	if n := s.lastRunAtNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

type noopRecorder struct{}

func (noopRecorder) ObserveRun(string)                        {}
func (noopRecorder) ObserveCarrierCall(string, time.Duration) {}
func (noopRecorder) NotificationFailed()                      {}
