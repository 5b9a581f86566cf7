package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/resilience"
)

var (
	// Rejected by the server or client for this message or subject; the
	// connection is healthy and a retry sends the same rejection.
	corpusEventRejections = []error{
		nats.ErrBadSubject,
		nats.ErrMaxPayload,
		nats.ErrPermissionViolation,
		nats.ErrAuthorization,
	}
	// The connection is between servers; the client buffers and reconnects.
	corpusEventOutages = []error{
		nats.ErrNoServers,
		nats.ErrTimeout,
		nats.ErrDisconnected,
		nats.ErrConnectionReconnecting,
		nats.ErrReconnectBufExceeded,
	}
	// The connection was closed or is draining during shutdown.
	corpusEventShutdown = []error{
		nats.ErrConnectionClosed,
		nats.ErrConnectionDraining,
		nats.ErrInvalidConnection,
	}
)

// classifyCorpusEventError tells the executor how to treat a failed corpus
// event publish. Only outages are retried; rejections and shutdowns do not
// count against the breaker.
func classifyCorpusEventError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isAny(err, corpusEventOutages):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case isAny(err, corpusEventRejections), isAny(err, corpusEventShutdown):
		return resilience.ErrorClassification{}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// corpusEventError maps outages to ErrTemporary and rejections of the
// configured subject or payload to ErrInvalidInput.
func corpusEventError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrInvalidInput):
		return err
	case resilience.IsCircuitOpen(err), isAny(err, corpusEventOutages):
		return domain.WrapError(domain.ErrTemporary, op, err)
	case isAny(err, corpusEventRejections):
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	default:
		return err
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
