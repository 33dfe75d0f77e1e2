package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/verification/entity"
)

type VerifyInput struct {
	Email string `validate:"required,email,max=254"`
	Code  string `validate:"required,otpcode"`
}

// Verify checks a submitted code against the outstanding challenge.
//
// Every rejected code charges one failed attempt; crossing the attempt
// ceiling locks the account permanently. The request that crosses the
// ceiling is reported with its own failure reason, only later requests
// observe the lock.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) error {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	acc, err := s.repoAccount.GetAccountByEmail(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("No verification requested for this email", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get account", "email", in.Email, "error", err)
		return goerror.NewUnavailable(err)
	}

	if acc.IsLocked {
		return goerror.NewBusiness("Account is locked after too many failed attempts", goerror.CodeLocked)
	}

	challenge, err := s.repoChallenge.GetChallenge(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		if err := s.registerFailedAttempt(ctx, acc); err != nil {
			return err
		}
		return goerror.NewBusiness("No active code for this email", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get challenge", "email", in.Email, "error", err)
		return goerror.NewUnavailable(err)
	}

	if challenge.Expired(s.clock.Now()) {
		if err := s.registerFailedAttempt(ctx, acc); err != nil {
			return err
		}
		s.discardChallenge(ctx, in.Email)
		return goerror.NewBusiness("Code has expired", goerror.CodeUnauthorized)
	}

	if !s.hmac.Verify(challenge.CodeHash, in.Code) {
		if err := s.registerFailedAttempt(ctx, acc); err != nil {
			return err
		}
		return goerror.NewBusiness("Invalid code", goerror.CodeUnauthorized)
	}

	if err := s.markValidated(ctx, acc); err != nil {
		return err
	}

	s.discardChallenge(ctx, in.Email)

	s.publish(ctx, func(ctx context.Context) error {
		return s.repoMessaging.PublishAccountVerified(ctx, AccountVerifiedEvent{
			AccountID: acc.ID,
			Email:     acc.Email,
		})
	})

	return nil
}

// markValidated moves the account to its terminal state. When the guarded
// update matches no row a concurrent request already settled the account,
// so the outcome is decided by a re-read.
func (s *Usecase) markValidated(ctx context.Context, acc *entity.Account) error {
	err := s.repoAccount.MarkValidated(ctx, acc.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, goerror.ErrPredicateFailed) {
		slog.ErrorContext(ctx, "failed to mark account validated", "email", acc.Email, "error", err)
		return goerror.NewUnavailable(err)
	}

	current, gerr := s.repoAccount.GetAccountByID(ctx, acc.ID)
	if gerr != nil {
		slog.ErrorContext(ctx, "failed to re-read account", "email", acc.Email, "error", gerr)
		return goerror.NewUnavailable(gerr)
	}

	if current.IsLocked {
		return goerror.NewBusiness("Account is locked after too many failed attempts", goerror.CodeLocked)
	}

	// Already validated by a concurrent request carrying the same code.
	return nil
}

// discardChallenge removes a consumed or expired code. The account state
// is already settled, so a failed delete only leaves the store-side TTL
// to clean up.
func (s *Usecase) discardChallenge(ctx context.Context, email string) {
	if err := s.repoChallenge.DeleteChallenge(ctx, email); err != nil {
		slog.WarnContext(ctx, "failed to delete challenge", "email", email, "error", err)
	}
}
