package mq

import (
	"context"
	"encoding/json"

	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/messaging"
	"github.com/otpgate/otpgate/internal/shared/event"
	"github.com/otpgate/otpgate/internal/verification/usecase"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishCodeIssued(ctx context.Context, msg usecase.CodeIssuedEvent) error {
	ctx, span := m.ins.Tracer("verification.outbound.mq").Start(ctx, "PublishCodeIssued")
	defer span.End()

	body, err := json.Marshal(event.CodeIssuedMessage{
		AccountID:   msg.AccountID,
		Email:       msg.Email,
		ResendCount: msg.ResendCount,
		ExpiresAt:   msg.ExpiresAt.Unix(),
	})
	if err != nil {
		return m.fail(span, err)
	}

	return m.send(ctx, span, event.CodeIssuedDestination, body)
}

func (m *Messaging) PublishAccountLocked(ctx context.Context, msg usecase.AccountLockedEvent) error {
	ctx, span := m.ins.Tracer("verification.outbound.mq").Start(ctx, "PublishAccountLocked")
	defer span.End()

	body, err := json.Marshal(event.AccountLockedMessage{
		AccountID: msg.AccountID,
		Email:     msg.Email,
		Attempts:  msg.Attempts,
	})
	if err != nil {
		return m.fail(span, err)
	}

	return m.send(ctx, span, event.AccountLockedDestination, body)
}

func (m *Messaging) PublishAccountVerified(ctx context.Context, msg usecase.AccountVerifiedEvent) error {
	ctx, span := m.ins.Tracer("verification.outbound.mq").Start(ctx, "PublishAccountVerified")
	defer span.End()

	body, err := json.Marshal(event.AccountVerifiedMessage{
		AccountID: msg.AccountID,
		Email:     msg.Email,
	})
	if err != nil {
		return m.fail(span, err)
	}

	return m.send(ctx, span, event.AccountVerifiedDestination, body)
}

func (m *Messaging) send(ctx context.Context, span trace.Span, destination string, body []byte) error {
	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, destination, messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		return m.fail(span, err)
	}

	return nil
}

func (m *Messaging) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
