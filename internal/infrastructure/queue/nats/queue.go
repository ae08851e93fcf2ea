package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/infrastructure/resilience"
)

const (
	workerQueueGroup  = "workers"
	publishedAtHeader = "Vault-Published-At"
)

// Subjects names the NATS subjects used by the pipeline.
type Subjects struct {
	AnalysisRequested string
	Transitions       string
}

func (s Subjects) withDefaults() Subjects {
	if s.AnalysisRequested == "" {
		s.AnalysisRequested = "submissions.analysis.requested"
	}
	if s.Transitions == "" {
		s.Transitions = "submissions.transitions"
	}
	return s
}

// Bus implements ports.EventBus over a single NATS connection.
type Bus struct {
	conn     *nats.Conn
	subjects Subjects
	executor *resilience.Executor
	logger   *zap.Logger
	onLag    func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *zap.Logger
	// OnQueueLag receives the publish-to-delivery delay of each analysis request.
	OnQueueLag func(time.Duration)
}

// TransitionEvent is the JSON payload published on the transitions subject.
type TransitionEvent struct {
	ID           int64     `json:"id"`
	SubmissionID string    `json:"submission_id"`
	From         string    `json:"from_status"`
	To           string    `json:"to_status"`
	Actor        string    `json:"actor"`
	Remarks      string    `json:"remarks,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func New(url string, subjects Subjects) (*Bus, error) {
	return NewWithOptions(url, subjects, Options{})
}

func NewWithOptions(url string, subjects Subjects, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "nats"))

	conn, err := nats.Connect(
		url,
		nats.Name("submission-vault"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:     conn,
		subjects: subjects.withDefaults(),
		executor: options.ResilienceExecutor,
		logger:   logger,
		onLag:    options.OnQueueLag,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishAnalysisRequested(ctx context.Context, submissionID string) error {
	return b.publish(ctx, b.subjects.AnalysisRequested, []byte(submissionID))
}

func (b *Bus) PublishTransition(ctx context.Context, tr domain.Transition) error {
	payload, err := json.Marshal(newTransitionEvent(tr))
	if err != nil {
		return fmt.Errorf("encode transition event: %w", err)
	}
	return b.publish(ctx, b.subjects.Transitions, payload)
}

func (b *Bus) publish(ctx context.Context, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		msg := nats.NewMsg(subject)
		msg.Data = payload
		msg.Header.Set(publishedAtHeader, time.Now().UTC().Format(time.RFC3339Nano))
		if err := b.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// SubscribeAnalysisRequested blocks until ctx is done, then drains in-flight messages.
func (b *Bus) SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := b.conn.QueueSubscribe(b.subjects.AnalysisRequested, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		submissionID := string(msg.Data)
		if at, ok := publishedAt(msg); ok && b.onLag != nil {
			b.onLag(time.Since(at))
		}
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, submissionID); err != nil {
			b.logger.Error("analysis_handler_failed", zap.String("submission_id", submissionID), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func publishedAt(msg *nats.Msg) (time.Time, bool) {
	if msg.Header == nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, msg.Header.Get(publishedAtHeader))
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

func newTransitionEvent(tr domain.Transition) TransitionEvent {
	return TransitionEvent{
		ID:           tr.ID,
		SubmissionID: tr.SubmissionID,
		From:         string(tr.From),
		To:           string(tr.To),
		Actor:        tr.Actor,
		Remarks:      tr.Remarks,
		CreatedAt:    tr.CreatedAt,
	}
}
