package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/LabelBox/config"
	"github.com/BearBump/LabelBox/internal/broker/kafka"
	"github.com/BearBump/LabelBox/internal/broker/messages"
	"github.com/BearBump/LabelBox/internal/cache/rediscache"
	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/BearBump/LabelBox/internal/integrations/carrier/breaker"
	"github.com/BearBump/LabelBox/internal/integrations/carrier/fake"
	"github.com/BearBump/LabelBox/internal/integrations/carrier/glshttp"
	"github.com/BearBump/LabelBox/internal/integrations/oms"
	"github.com/BearBump/LabelBox/internal/metrics"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/BearBump/LabelBox/internal/services/labels"
	"github.com/BearBump/LabelBox/internal/storage/pglabels"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// omsAPI is everything the worker needs from the order-management service.
type omsAPI interface {
	labels.OMS
	labels.CarrierRegistry
}

// runStore is the Postgres side: setup documents and the run journal.
type runStore interface {
	labels.Journal
	labels.DocumentSource
	ListRuns(ctx context.Context, shipmentID models.ID, limit, offset int) ([]*models.LabelRun, error)
	UpsertCarrierSetup(ctx context.Context, carrierName, dataDocument string) error
	Ping(ctx context.Context) error
}

// eventMarks is the Redis side: dedup marks, also probed by /readyz.
type eventMarks interface {
	labels.EventMarks
	Ping(ctx context.Context) error
}

type triggerConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
	Close() error
}

type workerFactories struct {
	newOMS           func(ctx context.Context, cfg *config.Config) (omsAPI, error)
	newStore         func(cfg *config.Config) (store runStore, closeFn func(), err error)
	newConsumer      func(cfg *config.Config) triggerConsumer
	newProducer      func(cfg *config.Config) (producer labels.Producer, closeFn func())
	newEventMarks    func(cfg *config.Config) (marks eventMarks, closeFn func())
	newRateLimiter   func(cfg *config.Config) (limiter labels.RateLimiter, closeFn func())
	newCarrierClient func(cfg *config.Config) carrier.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newOMS: func(ctx context.Context, cfg *config.Config) (omsAPI, error) {
			httpc, err := oms.NewAuthClient(ctx, oms.AuthConfig{
				AuthURL:      cfg.OMS.AuthURL,
				ClientID:     cfg.OMS.ClientID,
				ClientSecret: cfg.OMS.ClientSecret,
				APIKey:       cfg.OMS.APIKey,
				Timeout:      time.Duration(cfg.OMS.TimeoutSeconds) * time.Second,
			})
			if err != nil {
				return nil, errors.Wrap(err, "oms auth client")
			}
			return oms.New(cfg.OMS.APIURL, httpc), nil
		},
		newStore: func(cfg *config.Config) (runStore, func(), error) {
			if cfg.Database.Host == "" {
				return nil, nil, nil
			}
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pglabels.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newConsumer: func(cfg *config.Config) triggerConsumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, cfg.Kafka.LabelRequestedTopicName, cfg.LabelBox.KafkaConsumerGroup)
		},
		newProducer: func(cfg *config.Config) (labels.Producer, func()) {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			p := kafka.NewProducer(brokers)
			return p, func() { closeQuietly("kafka producer", p.Close) }
		},
		newEventMarks: func(cfg *config.Config) (eventMarks, func()) {
			if cfg.Redis.Host == "" {
				return nil, nil
			}
			m := rediscache.NewEventMarks(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
			return m, func() { closeQuietly("event marks", m.Close) }
		},
		newRateLimiter: func(cfg *config.Config) (labels.RateLimiter, func()) {
			if cfg.Redis.Host == "" {
				return nil, nil
			}
			l := rediscache.NewCarrierLimiter(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
			return l, func() { closeQuietly("carrier limiter", l.Close) }
		},
		newCarrierClient: func(cfg *config.Config) carrier.Client {
			switch cfg.Carrier.Mode {
			case "fake":
				return fake.New()
			default:
				timeout := time.Duration(cfg.Carrier.TimeoutSeconds) * time.Second
				if timeout <= 0 {
					timeout = 60 * time.Second
				}
				return glshttp.New(cfg.Carrier.BaseURL, &http.Client{Timeout: timeout})
			}
		},
	}
}

func closeQuietly(what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		slog.Warn("close "+what, "error", err.Error())
	}
}

// applyDefaults fills what the yaml file left empty.
func applyDefaults(cfg *config.Config) {
	if cfg.Kafka.LabelRequestedTopicName == "" {
		cfg.Kafka.LabelRequestedTopicName = "shipment.label-requested"
	}
	if cfg.Kafka.LabelOutcomeTopicName == "" {
		cfg.Kafka.LabelOutcomeTopicName = "shipment.label-outcome"
	}
	if cfg.LabelBox.KafkaConsumerGroup == "" {
		cfg.LabelBox.KafkaConsumerGroup = "label-worker"
	}
	if cfg.LabelBox.WorkerHTTPAddr == "" {
		cfg.LabelBox.WorkerHTTPAddr = ":8082"
	}
	if cfg.LabelBox.DedupTTLSeconds <= 0 {
		cfg.LabelBox.DedupTTLSeconds = 7 * 24 * 3600
	}
	if cfg.Carrier.Name == "" {
		cfg.Carrier.Name = "GLS"
	}
	if cfg.Carrier.ConfigSource == "" {
		cfg.Carrier.ConfigSource = "registry"
	}
	if cfg.Carrier.RateLimitPerMinute <= 0 {
		cfg.Carrier.RateLimitPerMinute = 120
	}
}

func newResolver(cfg *config.Config, api omsAPI, store runStore) (labels.ConfigResolver, error) {
	switch cfg.Carrier.ConfigSource {
	case "inline":
		s := cfg.Carrier.InlineSetup
		return labels.NewInlineResolver(cfg.Carrier.Name, models.CarrierSetup{
			UserName:   s.UserName,
			Password:   s.Password,
			CustomerID: s.CustomerID,
			ContactID:  s.ContactID,
		}), nil
	case "store":
		if store == nil {
			return nil, errors.New("carrier config_source \"store\" needs a database")
		}
		return labels.NewDocumentResolver(store), nil
	case "registry":
		return labels.NewRegistryResolver(api), nil
	default:
		return nil, errors.Errorf("unknown carrier config_source %q", cfg.Carrier.ConfigSource)
	}
}

func defaultSender(cfg *config.Config) *models.Party {
	p := cfg.LabelBox.DefaultSender
	if p == nil {
		return nil
	}
	party := &models.Party{
		Address: models.Address{
			Addressee:           p.Addressee,
			StreetNameAndNumber: p.StreetNameAndNumber,
			PostalCode:          p.PostalCode,
			CityTownOrVillage:   p.CityTownOrVillage,
			CountryCode:         p.CountryCode,
		},
	}
	if p.ContactName != "" || p.ContactEmail != "" || p.ContactPhone != "" {
		party.ContactPerson = &models.ContactPerson{
			Name:        p.ContactName,
			Email:       p.ContactEmail,
			PhoneNumber: p.ContactPhone,
		}
	}
	return party
}

// triggerHandler commits everything except retryable failures, which stop
// the consumer so the event is redelivered.
func triggerHandler(svc *labels.Service, m *metrics.Metrics) kafka.Handler {
	return func(ctx context.Context, key, value []byte) error {
		var req messages.LabelRequested
		if err := json.Unmarshal(value, &req); err != nil {
			slog.Error("decode label request", "key", string(key), "error", err.Error())
			m.RecordTrigger("malformed")
			return nil
		}

		out, err := svc.Handle(ctx, req)
		switch {
		case err == nil:
			slog.Info("label request handled", "shipment_id", req.ShipmentID, "event_id", req.EventID, "outcome", out.Kind)
			m.RecordTrigger("handled")
			return nil
		case labels.IsRetryable(err):
			m.RecordTrigger("retry")
			return err
		default:
			m.RecordTrigger("failed")
			return nil
		}
	}
}

func RunLabelWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	applyDefaults(cfg)
	m := metrics.New()

	api, err := f.newOMS(ctx, cfg)
	if err != nil {
		return err
	}

	store, closeFn, err := f.newStore(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	resolver, err := newResolver(cfg, api, store)
	if err != nil {
		return err
	}

	cb := breaker.New(f.newCarrierClient(cfg), breaker.Settings{
		Name:             cfg.Carrier.Name,
		FailureThreshold: uint32(max(cfg.Carrier.BreakerFailureThreshold, 0)),
		OpenTimeout:      time.Duration(cfg.Carrier.BreakerOpenSeconds) * time.Second,
		OnStateChange:    m.SetCircuitBreakerState,
	})

	limiter, closeLimiter := f.newRateLimiter(cfg)
	if closeLimiter != nil {
		defer closeLimiter()
	}
	marks, closeMarks := f.newEventMarks(cfg)
	if closeMarks != nil {
		defer closeMarks()
	}
	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}

	svc := labels.New(api, resolver, cb, cfg.Carrier.Name).
		WithDefaultSender(defaultSender(cfg)).
		WithRateLimit(limiter, int64(cfg.Carrier.RateLimitPerMinute), 0).
		WithMetrics(m)
	if marks != nil {
		svc.WithEventMarks(marks, time.Duration(cfg.LabelBox.DedupTTLSeconds)*time.Second)
	}
	if store != nil {
		svc.WithJournal(store)
	}
	if producer != nil {
		svc.WithProducer(producer, cfg.Kafka.LabelOutcomeTopicName)
	}

	consumer := f.newConsumer(cfg)
	defer func() { _ = consumer.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runWorkerHTTPServer(gctx, workerHTTPOpts{
			httpAddr:    cfg.LabelBox.WorkerHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			service:     svc,
			store:       store,
			cache:       marks,
			breaker:     cb,
			metrics:     m,
			cfg:         cfg,
		})
	})
	g.Go(func() error {
		slog.Info("consuming label requests", "topic", cfg.Kafka.LabelRequestedTopicName, "group", cfg.LabelBox.KafkaConsumerGroup)
		return consumer.Consume(gctx, triggerHandler(svc, m))
	})
	return g.Wait()
}
