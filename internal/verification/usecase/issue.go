package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/verification/entity"
)

type IssueInput struct {
	Email        string `validate:"required,email,max=254"`
	MobileNumber string `validate:"omitempty,e164"`
}

type IssueOutput struct {
	AccountID   int64
	Email       string
	ResendCount int32
	ExpiresAt   time.Time
	CreateDate  time.Time
	UpdateDate  time.Time
}

// Issue sends a fresh one-time code to the given email address.
//
// The account is created on first use. Every issuance, including the
// first, consumes one unit of the resend budget; the budget is enforced
// by a conditional update so concurrent requests cannot exceed it. A new
// code always replaces any outstanding one.
func (s *Usecase) Issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.MobileNumber = strings.TrimSpace(in.MobileNumber)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.ensureAccount(ctx, in)
	if err != nil {
		return nil, err
	}

	updated, err := s.repoAccount.IncrementResend(ctx, acc.ID, s.maxResend())
	if errors.Is(err, goerror.ErrPredicateFailed) {
		return nil, s.classifyIssueRefusal(ctx, acc)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to increment resend count", "email", in.Email, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	code, err := s.codegen.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate code", "error", err)
		return nil, goerror.NewServer(err)
	}

	codeHash, err := s.hmac.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash code", "error", err)
		return nil, goerror.NewServer(err)
	}

	ttl := s.codeTTL()
	challenge := entity.Challenge{
		Email:     in.Email,
		CodeHash:  string(codeHash),
		ExpiresAt: s.clock.Now().Add(ttl),
	}
	if err := s.repoChallenge.PutChallenge(ctx, challenge, ttl); err != nil {
		slog.ErrorContext(ctx, "failed to store challenge", "email", in.Email, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	// The challenge must be durable before the code leaves the system,
	// otherwise a delivered code could be unverifiable.
	if err := s.notifier.SendVerificationCode(ctx, in.Email, code, ttl); err != nil {
		slog.ErrorContext(ctx, "failed to send verification code", "email", in.Email, "error", err)
		return nil, goerror.NewDelivery(err)
	}

	s.publish(ctx, func(ctx context.Context) error {
		return s.repoMessaging.PublishCodeIssued(ctx, CodeIssuedEvent{
			AccountID:   updated.ID,
			Email:       updated.Email,
			ResendCount: updated.ResendCount,
			ExpiresAt:   challenge.ExpiresAt,
		})
	})

	return &IssueOutput{
		AccountID:   updated.ID,
		Email:       updated.Email,
		ResendCount: updated.ResendCount,
		ExpiresAt:   challenge.ExpiresAt,
		CreateDate:  updated.CreateDate,
		UpdateDate:  updated.UpdateDate,
	}, nil
}

func (s *Usecase) ensureAccount(ctx context.Context, in IssueInput) (*entity.Account, error) {
	acc, err := s.repoAccount.GetAccountByEmail(ctx, in.Email)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to get account", "email", in.Email, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	now := s.clock.Now()
	newAcc := entity.Account{
		ID:           s.uid.Generate(),
		Email:        in.Email,
		MobileNumber: in.MobileNumber,
		CreateDate:   now,
		UpdateDate:   now,
	}

	// A concurrent request may have created the row first; that insert
	// losing the race is not an error, the winner's row is used.
	err = s.repoAccount.CreateAccountIfAbsent(ctx, newAcc)
	if err != nil && !errors.Is(err, goerror.ErrConflict) {
		slog.ErrorContext(ctx, "failed to create account", "email", in.Email, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	acc, err = s.repoAccount.GetAccountByEmail(ctx, in.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get account after create", "email", in.Email, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	return acc, nil
}

// classifyIssueRefusal re-reads the account by primary key to explain why
// the guarded resend update matched no row.
func (s *Usecase) classifyIssueRefusal(ctx context.Context, stale *entity.Account) error {
	acc, err := s.repoAccount.GetAccountByID(ctx, stale.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to classify issue refusal", "email", stale.Email, "error", err)
		return goerror.NewUnavailable(err)
	}

	if acc.IsValidated {
		return goerror.NewBusiness("Email is already verified", goerror.CodeConflict)
	}

	return goerror.NewBusiness("Resend limit reached", goerror.CodeTooManyRequest)
}
