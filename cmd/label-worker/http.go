package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/BearBump/LabelBox/config"
	"github.com/BearBump/LabelBox/internal/broker/messages"
	"github.com/BearBump/LabelBox/internal/integrations/carrier/breaker"
	"github.com/BearBump/LabelBox/internal/metrics"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/BearBump/LabelBox/internal/services/labels"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

const maxSetupBody = 64 << 10

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	service *labels.Service
	store   runStore
	cache   pinger
	breaker *breaker.Client
	metrics *metrics.Metrics
	cfg     *config.Config
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newWorkerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()

	if opts.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
				next.ServeHTTP(sw, req)
				route := req.URL.Path
				if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				opts.metrics.RecordHTTPRequest(req.Method, route, sw.status)
			})
		})
		r.Method(http.MethodGet, "/metrics", opts.metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if opts.store != nil {
			if err := opts.store.Ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "postgres: "+err.Error())
				return
			}
		}
		if opts.cache != nil {
			if err := opts.cache.Ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "redis: "+err.Error())
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.service == nil {
			writeError(w, http.StatusOK, "service not wired")
			return
		}
		out := map[string]any{"runs": opts.service.Stats()}
		if opts.breaker != nil {
			out["carrierBreaker"] = opts.breaker.State()
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeError(w, http.StatusOK, "config not wired")
			return
		}
		// operational settings only, no credentials
		writeJSON(w, http.StatusOK, map[string]any{
			"carrierName":             opts.cfg.Carrier.Name,
			"carrierMode":             opts.cfg.Carrier.Mode,
			"configSource":            opts.cfg.Carrier.ConfigSource,
			"rateLimitPerMinute":      opts.cfg.Carrier.RateLimitPerMinute,
			"breakerFailureThreshold": opts.cfg.Carrier.BreakerFailureThreshold,
			"breakerOpenSeconds":      opts.cfg.Carrier.BreakerOpenSeconds,
			"labelRequestedTopic":     opts.cfg.Kafka.LabelRequestedTopicName,
			"labelOutcomeTopic":       opts.cfg.Kafka.LabelOutcomeTopicName,
			"dedupTTLSeconds":         opts.cfg.LabelBox.DedupTTLSeconds,
			"defaultSender":           opts.cfg.LabelBox.DefaultSender != nil,
		})
	})

	r.Post("/label-requests", func(w http.ResponseWriter, r *http.Request) {
		if opts.service == nil {
			writeError(w, http.StatusServiceUnavailable, "service not wired")
			return
		}
		var req messages.LabelRequested
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}

		out, err := opts.service.Handle(r.Context(), req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, out)
		case errors.Is(err, labels.ErrInvalidTrigger):
			writeError(w, http.StatusBadRequest, err.Error())
		case labels.IsMappingError(err):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"outcome": out, "error": err.Error()})
		default:
			writeJSON(w, http.StatusBadGateway, map[string]any{"outcome": out, "error": err.Error()})
		}
	})

	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		if opts.store == nil {
			writeError(w, http.StatusNotFound, "run journal is not configured")
			return
		}
		shipmentID := r.URL.Query().Get("shipmentId")
		if shipmentID == "" {
			writeError(w, http.StatusBadRequest, "shipmentId is required")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		runs, err := opts.store.ListRuns(r.Context(), models.ID(shipmentID), limit, offset)
		if err != nil {
			slog.Error("list label runs", "shipment_id", shipmentID, "error", err.Error())
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if runs == nil {
			runs = []*models.LabelRun{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	})

	r.Put("/carrier-setups/{carrierName}", func(w http.ResponseWriter, r *http.Request) {
		if opts.store == nil {
			writeError(w, http.StatusNotFound, "carrier setup store is not configured")
			return
		}
		carrierName := chi.URLParam(r, "carrierName")
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSetupBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		setup, err := labels.ParseDataDocument(string(body))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := opts.store.UpsertCarrierSetup(r.Context(), carrierName, string(body)); err != nil {
			slog.Error("upsert carrier setup", "carrier", carrierName, "error", err.Error())
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Info("carrier setup stored", "carrier", carrierName, "customer_id", setup.CustomerID)
		writeJSON(w, http.StatusOK, map[string]string{"carrierName": carrierName, "customerId": setup.CustomerID})
	})

	if opts.swaggerPath != "" {
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Cache-Control", "no-store")
				http.ServeFile(w, r, opts.swaggerPath)
			})
			swaggerURL := fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
			r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
		} else {
			slog.Warn("worker swagger file not found", "path", opts.swaggerPath)
		}
	}

	return r
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
