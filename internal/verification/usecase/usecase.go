package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/clock"
	"github.com/otpgate/otpgate/internal/pkg/config"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/goroutine"
	"github.com/otpgate/otpgate/internal/pkg/hash"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/otp"
	"github.com/otpgate/otpgate/internal/pkg/uid"
	"github.com/otpgate/otpgate/internal/pkg/validator"
	"github.com/otpgate/otpgate/internal/verification/entity"
	"go.opentelemetry.io/otel/trace"
)

type CodeIssuedEvent struct {
	AccountID   int64
	Email       string
	ResendCount int32
	ExpiresAt   time.Time
}

type AccountLockedEvent struct {
	AccountID int64
	Email     string
	Attempts  int32
}

type AccountVerifiedEvent struct {
	AccountID int64
	Email     string
}

type repoMessaging interface {
	PublishCodeIssued(ctx context.Context, msg CodeIssuedEvent) error
	PublishAccountLocked(ctx context.Context, msg AccountLockedEvent) error
	PublishAccountVerified(ctx context.Context, msg AccountVerifiedEvent) error
}

// repoAccountDB persists verification accounts. All state transitions are
// conditional writes evaluated by the database; when the guard predicate
// does not hold the implementation returns goerror.ErrPredicateFailed.
type repoAccountDB interface {
	GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*entity.Account, error)

	// CreateAccountIfAbsent inserts the account unless one already exists
	// for the email, in which case it returns goerror.ErrConflict.
	CreateAccountIfAbsent(ctx context.Context, acc entity.Account) error

	// IncrementResend advances the resend counter while it is below
	// maxResend and the account is not validated, returning the updated row.
	IncrementResend(ctx context.Context, id int64, maxResend int32) (*entity.Account, error)

	// RegisterFailedAttempt advances the attempt counter and, in the same
	// statement, locks the account when the new count reaches maxAttempt.
	// It returns the updated row.
	RegisterFailedAttempt(ctx context.Context, id int64, maxAttempt int32) (*entity.Account, error)

	// MarkValidated moves the account to its terminal validated state and
	// resets both counters.
	MarkValidated(ctx context.Context, id int64) error
}

type repoChallengeDB interface {
	GetChallenge(ctx context.Context, email string) (*entity.Challenge, error)
	PutChallenge(ctx context.Context, ch entity.Challenge, ttl time.Duration) error
	DeleteChallenge(ctx context.Context, email string) error
}

type notifier interface {
	SendVerificationCode(ctx context.Context, email, code string, validFor time.Duration) error
}

type Usecase struct {
	repoAccount   repoAccountDB
	repoChallenge repoChallengeDB
	repoMessaging repoMessaging
	notifier      notifier
	validator     validator.Validator
	cfg           config.Config
	hmac          hash.Hash
	codegen       otp.Generator
	uid           uid.NumberID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
}

type Dependency struct {
	RepoAccount   repoAccountDB
	RepoChallenge repoChallengeDB
	RepoMessaging repoMessaging
	Notifier      notifier
	Validator     validator.Validator
	Config        config.Config
	HMAC          hash.Hash
	CodeGenerator otp.Generator
	UID           uid.NumberID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoAccount:   dep.RepoAccount,
		repoChallenge: dep.RepoChallenge,
		repoMessaging: dep.RepoMessaging,
		notifier:      dep.Notifier,
		validator:     dep.Validator,
		cfg:           dep.Config,
		hmac:          dep.HMAC,
		codegen:       dep.CodeGenerator,
		uid:           dep.UID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("verification.usecase").Start(ctx, name)
}

func (s *Usecase) maxResend() int32 {
	if v := s.cfg.GetInt32("modules.verification.max_resend"); v > 0 {
		return v
	}
	return 5
}

func (s *Usecase) maxAttempt() int32 {
	if v := s.cfg.GetInt32("modules.verification.max_attempt"); v > 0 {
		return v
	}
	return 5
}

func (s *Usecase) codeTTL() time.Duration {
	if v := s.cfg.GetMinute("modules.verification.code_ttl_minutes"); v > 0 {
		return v
	}
	return 10 * time.Minute
}

// registerFailedAttempt charges one failed attempt against the account and
// publishes a lock event when this attempt crossed the ceiling. The caller
// still returns the reason for the failing attempt itself; only subsequent
// calls observe the locked state. A store failure propagates: rejecting a
// code without charging the attempt would leave guessing unmetered.
func (s *Usecase) registerFailedAttempt(ctx context.Context, acc *entity.Account) error {
	updated, err := s.repoAccount.RegisterFailedAttempt(ctx, acc.ID, s.maxAttempt())
	if errors.Is(err, goerror.ErrPredicateFailed) {
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to register failed attempt", "email", acc.Email, "error", err)
		return goerror.NewUnavailable(err)
	}

	if !updated.IsLocked {
		return nil
	}

	s.publish(ctx, func(ctx context.Context) error {
		return s.repoMessaging.PublishAccountLocked(ctx, AccountLockedEvent{
			AccountID: updated.ID,
			Email:     updated.Email,
			Attempts:  updated.VerificationAttempt,
		})
	})

	return nil
}

// publish runs fn on the worker pool, detached from the request lifetime.
// Event delivery is best effort and never affects the caller's result.
func (s *Usecase) publish(ctx context.Context, fn func(ctx context.Context) error) {
	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to publish event", "error", err)
		}
		return nil
	})
}
