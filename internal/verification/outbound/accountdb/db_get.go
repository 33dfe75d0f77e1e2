package accountdb

import (
	"context"

	"github.com/otpgate/otpgate/internal/verification/entity"
)

const getAccountByEmailSQL = `
SELECT id, email, mobile_number, verification_attempt, resend_count,
       is_validated, is_locked, create_date, update_date
FROM verification_accounts
WHERE email = $1`

func (s *DB) GetAccountByEmail(ctx context.Context, email string) (acc *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByEmail")
	defer func() { s.endSpan(span, err) }()

	return s.scanAccountRow(ctx, getAccountByEmailSQL, email)
}

const getAccountByIDSQL = `
SELECT id, email, mobile_number, verification_attempt, resend_count,
       is_validated, is_locked, create_date, update_date
FROM verification_accounts
WHERE id = $1`

func (s *DB) GetAccountByID(ctx context.Context, id int64) (acc *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByID")
	defer func() { s.endSpan(span, err) }()

	return s.scanAccountRow(ctx, getAccountByIDSQL, id)
}

func (s *DB) scanAccountRow(ctx context.Context, sql string, arg any) (*entity.Account, error) {
	var out entity.Account
	err := s.conn.QueryRow(ctx, sql, arg).Scan(
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
	if err != nil {
		return nil, s.mapError(err)
	}

	return &out, nil
}
