package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

// Dependencies are the inbound ports the API drives.
type Dependencies struct {
	Uploader ports.SubmissionUploader
	Pipeline ports.SubmissionPipeline
	Reader   ports.SubmissionReader
	Rules    ports.RuleAdmin
}

type Options struct {
	MaxUploadBytes   int64
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	CORSOrigins      []string
	// OnReject observes requests shed by rate limiting or backpressure.
	OnReject func(reason string)
	// Metrics, when set, exposes /metrics.
	Metrics http.Handler
}

type Router struct {
	deps      Dependencies
	opts      Options
	logger    *zap.Logger
	validator *requestValidator
	forms     *form.Decoder
}

func NewRouter(ctx context.Context, deps Dependencies, opts Options, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	validator, err := newRequestValidator(ctx)
	if err != nil {
		return nil, err
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 100 * time.Millisecond
	}
	return &Router{
		deps:      deps,
		opts:      opts,
		logger:    logger.With(zap.String("component", "http")),
		validator: validator,
		forms:     form.NewDecoder(),
	}, nil
}

func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	if rt.opts.Metrics != nil {
		r.Handle("/metrics", rt.opts.Metrics).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/submissions", rt.uploadSubmission).Methods(http.MethodPost)
	v1.HandleFunc("/submissions/approve-all", rt.approveAll).Methods(http.MethodPost)
	v1.HandleFunc("/submissions/{id}", rt.getSubmission).Methods(http.MethodGet)
	v1.HandleFunc("/submissions/{id}/versions", rt.listVersions).Methods(http.MethodGet)
	v1.HandleFunc("/submissions/{id}/transitions", rt.listTransitions).Methods(http.MethodGet)
	v1.HandleFunc("/submissions/{id}/analysis", rt.runContentAnalysis).Methods(http.MethodPost)
	v1.HandleFunc("/submissions/{id}/actions", rt.reviewerAction).Methods(http.MethodPost)
	v1.HandleFunc("/transitions/recent", rt.recentTransitions).Methods(http.MethodGet)
	v1.HandleFunc("/document-types", rt.listDocumentTypes).Methods(http.MethodGet)
	v1.HandleFunc("/document-types/{id}", rt.saveDocumentType).Methods(http.MethodPut)
	v1.HandleFunc("/document-types/{id}/rules", rt.getRuleSet).Methods(http.MethodGet)
	v1.HandleFunc("/document-types/{id}/rules", rt.saveRuleSet).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	var handler http.Handler = rt.validator.middleware(r)
	if rt.opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait, rt.rejected("backpressure"))
	}
	if rt.opts.RateLimitRPS > 0 {
		burst := rt.opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		handler = rateLimitMiddleware(handler, rate.NewLimiter(rate.Limit(rt.opts.RateLimitRPS), burst), rt.rejected("rate_limit"))
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)

	if len(rt.opts.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: rt.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", actorHeader, requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
		}).Handler(handler)
	}
	return handler
}

func (rt *Router) rejected(reason string) func() {
	if rt.opts.OnReject == nil {
		return nil
	}
	return func() { rt.opts.OnReject(reason) }
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json"))
	}
	return nil
}

func requireActor(r *http.Request) (string, error) {
	actor := actorFromRequest(r)
	if actor == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "read actor", errors.New(actorHeader+" header is required"))
	}
	return actor, nil
}
