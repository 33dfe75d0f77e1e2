package email

import (
	"context"
	"fmt"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/mail"
	"go.opentelemetry.io/otel/codes"
)

type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, ins: ins}
}

// SendVerificationCode delivers the one-time code to the recipient.
func (m *Mail) SendVerificationCode(ctx context.Context, email, code string, validFor time.Duration) error {
	ctx, span := m.ins.Tracer("verification.outbound.email").Start(ctx, "SendVerificationCode")
	defer span.End()

	minutes := int(validFor.Minutes())

	msg := mail.Message{
		To:       []string{email},
		Subject:  "Your verification code",
		TextBody: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
		HTMLBody: fmt.Sprintf(
			`<p>Your verification code is</p><h2 style="letter-spacing:4px">%s</h2><p>It expires in %d minutes. If you did not request this code, you can ignore this email.</p>`,
			code, minutes,
		),
	}

	if err := m.client.Send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
