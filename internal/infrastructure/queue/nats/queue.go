package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/segment-advisor/internal/infrastructure/resilience"
)

// DefaultCorpusSubject carries the revision string of a freshly indexed corpus.
const DefaultCorpusSubject = "segment_advisor.corpus.changed"

// CorpusEvents fans corpus revisions out from the indexer to every API replica.
type CorpusEvents struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	ClientName           string
}

func New(url, subject string) (*CorpusEvents, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*CorpusEvents, error) {
	if subject == "" {
		subject = DefaultCorpusSubject
	}
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
	name := options.ClientName
	if name == "" {
		name = "segment-advisor"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &CorpusEvents{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *CorpusEvents) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *CorpusEvents) PublishCorpusChanged(ctx context.Context, revision string) error {
	err := resilience.Run(ctx, q.executor, "nats.publish", func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, []byte(revision)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		if err := q.conn.FlushTimeout(2 * time.Second); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
		return nil
	}, classifyCorpusEventError)
	return corpusEventError("publish corpus event", err)
}

// SubscribeCorpusChanged blocks until ctx is done. Every subscriber receives every
// revision, so no queue group is used.
func (q *CorpusEvents) SubscribeCorpusChanged(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.Subscribe(q.subject, func(msg *nats.Msg) {
		dispatch(ctx, string(msg.Data), handler)
	})
	if err != nil {
		return corpusEventError("subscribe corpus events", fmt.Errorf("nats subscribe: %w", err))
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func dispatch(ctx context.Context, revision string, handler func(context.Context, string) error) {
	if ctx.Err() != nil {
		return
	}
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, revision); err != nil {
		slog.Error("corpus_event_handler_failed", "revision", revision, "error", err)
	}
}
