package accountdb

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/verification/entity"
)

const incrementResendSQL = `
UPDATE verification_accounts
SET resend_count = resend_count + 1,
    update_date  = now()
WHERE id = $1
  AND NOT is_validated
  AND resend_count < $2
RETURNING id, email, mobile_number, verification_attempt, resend_count,
          is_validated, is_locked, create_date, update_date`

// IncrementResend consumes one unit of the resend budget. The guard runs
// inside the UPDATE, so two concurrent issuances can never push the
// counter past maxResend.
func (s *DB) IncrementResend(ctx context.Context, id int64, maxResend int32) (acc *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "IncrementResend")
	defer func() { s.endSpan(span, err) }()

	return s.queryAccountRow(ctx, incrementResendSQL, id, maxResend)
}

const registerFailedAttemptSQL = `
UPDATE verification_accounts
SET verification_attempt = verification_attempt + 1,
    is_locked            = (verification_attempt + 1 >= $2),
    update_date          = now()
WHERE id = $1
  AND NOT is_locked
  AND NOT is_validated
RETURNING id, email, mobile_number, verification_attempt, resend_count,
          is_validated, is_locked, create_date, update_date`

// RegisterFailedAttempt charges one failed attempt and locks the account
// in the same statement when the new count reaches maxAttempt. The lock
// is therefore set exactly once, by the attempt that crosses the ceiling.
func (s *DB) RegisterFailedAttempt(ctx context.Context, id int64, maxAttempt int32) (acc *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "RegisterFailedAttempt")
	defer func() { s.endSpan(span, err) }()

	return s.queryAccountRow(ctx, registerFailedAttemptSQL, id, maxAttempt)
}

const markValidatedSQL = `
UPDATE verification_accounts
SET is_validated         = true,
    verification_attempt = 0,
    resend_count         = 0,
    update_date          = now()
WHERE id = $1
  AND NOT is_locked
  AND NOT is_validated`

// MarkValidated moves the account to its terminal validated state and
// resets both counters.
func (s *DB) MarkValidated(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkValidated")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, markValidatedSQL, id)
	if err != nil {
		return s.mapError(err)
	}

	if tag.RowsAffected() == 0 {
		return goerror.ErrPredicateFailed
	}

	return nil
}

func (s *DB) queryAccountRow(ctx context.Context, sql string, args ...any) (*entity.Account, error) {
	var out entity.Account
	err := s.conn.QueryRow(ctx, sql, args...).Scan(
		&out.ID,
		&out.Email,
		&out.MobileNumber,
		&out.VerificationAttempt,
		&out.ResendCount,
		&out.IsValidated,
		&out.IsLocked,
		&out.CreateDate,
		&out.UpdateDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goerror.ErrPredicateFailed
	}
	if err != nil {
		return nil, s.mapError(err)
	}

	return &out, nil
}
