package accountdb

import (
	"context"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/verification/entity"
)

const createAccountSQL = `
INSERT INTO verification_accounts
    (id, email, mobile_number, verification_attempt, resend_count,
     is_validated, is_locked, create_date, update_date)
VALUES ($1, $2, $3, 0, 0, false, false, $4, $4)
ON CONFLICT (email) DO NOTHING`

// CreateAccountIfAbsent inserts a fresh account row. When another request
// already created the row for this email the insert affects nothing and
// goerror.ErrConflict is returned.
func (s *DB) CreateAccountIfAbsent(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAccountIfAbsent")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, createAccountSQL,
		acc.ID,
		acc.Email,
		acc.MobileNumber,
		acc.CreateDate,
	)
	if err != nil {
		return s.mapError(err)
	}

	if tag.RowsAffected() == 0 {
		return goerror.ErrConflict
	}

	return nil
}
