package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/goroutine"
	"github.com/otpgate/otpgate/internal/pkg/hash"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/validator"
	"github.com/otpgate/otpgate/internal/verification/entity"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	uc        *Usecase
	accounts  *stubAccountDB
	challenge *stubChallengeDB
	notifier  *stubNotifier
	messaging *stubMessaging
	goroutine *goroutine.Manager
	hmac      hash.Hash
}

// newFixture wires a Usecase against in-memory stubs with a fixed clock.
// The zero-valued config makes the usecase use its built-in ceilings
// (5 resends, 5 attempts, 10 minute TTL).
func newFixture(t *testing.T, cfg stubConfig) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}

	f := &fixture{
		accounts:  &stubAccountDB{},
		challenge: &stubChallengeDB{},
		notifier:  &stubNotifier{},
		messaging: &stubMessaging{},
		goroutine: goroutine.NewManager(8),
		hmac:      hash.NewHMACSHA256("test-secret"),
	}

	if cfg == nil {
		cfg = stubConfig{}
	}

	f.uc = New(Dependency{
		RepoAccount:   f.accounts,
		RepoChallenge: f.challenge,
		RepoMessaging: f.messaging,
		Notifier:      f.notifier,
		Validator:     v,
		Config:        cfg,
		HMAC:          f.hmac,
		CodeGenerator: stubCodeGen{code: "1234"},
		UID:           &stubUID{},
		Clock:         fixedClock{now: testNow},
		Instrument:    instrument.NewNoop(),
		Goroutine:     f.goroutine,
	})

	return f
}

// drain waits for async event publishing to settle.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	if err := f.goroutine.Wait(); err != nil {
		t.Fatalf("goroutine manager reported errors: %v", err)
	}
}

func (f *fixture) hashOf(t *testing.T, code string) string {
	t.Helper()
	h, err := f.hmac.Hash(code)
	if err != nil {
		t.Fatalf("failed to hash code: %v", err)
	}
	return string(h)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type stubUID struct {
	next int64
}

func (s *stubUID) Generate() int64 {
	s.next++
	return s.next
}

type stubCodeGen struct {
	code string
	err  error
}

func (s stubCodeGen) Generate() (string, error) {
	return s.code, s.err
}

// stubConfig returns its int values by key and zero for everything else,
// which makes the usecase fall back to its built-in defaults.
type stubConfig map[string]int64

func (c stubConfig) GetInt(key string) int       { return int(c[key]) }
func (c stubConfig) GetInt32(key string) int32   { return int32(c[key]) }
func (c stubConfig) GetInt64(key string) int64   { return c[key] }
func (c stubConfig) GetBool(string) bool         { return false }
func (c stubConfig) GetString(string) string     { return "" }
func (c stubConfig) GetBinary(string) []byte     { return nil }
func (c stubConfig) GetArray(string) []string    { return nil }
func (c stubConfig) Close() error                { return nil }
func (c stubConfig) GetSecond(key string) time.Duration {
	return time.Duration(c[key]) * time.Second
}
func (c stubConfig) GetMinute(key string) time.Duration {
	return time.Duration(c[key]) * time.Minute
}
func (c stubConfig) GetHour(key string) time.Duration {
	return time.Duration(c[key]) * time.Hour
}

// stubAccountDB keeps a single account in memory and applies the same
// guard predicates the SQL statements express.
type stubAccountDB struct {
	mu  sync.Mutex
	acc *entity.Account

	getErr    error
	createErr error
	updateErr error

	// missFirstGet makes the first email lookup report no row even when
	// one is seeded, simulating a row created by a concurrent request
	// between the lookup and the insert.
	missFirstGet bool

	getCalls     int
	createCalls  int
	resendCalls  int
	attemptCalls int
}

func (s *stubAccountDB) GetAccountByEmail(_ context.Context, email string) (*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.missFirstGet && s.getCalls == 1 {
		return nil, goerror.ErrNotFound
	}
	if s.acc == nil || s.acc.Email != email {
		return nil, goerror.ErrNotFound
	}

	cp := *s.acc
	return &cp, nil
}

func (s *stubAccountDB) GetAccountByID(_ context.Context, id int64) (*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.acc == nil || s.acc.ID != id {
		return nil, goerror.ErrNotFound
	}

	cp := *s.acc
	return &cp, nil
}

func (s *stubAccountDB) CreateAccountIfAbsent(_ context.Context, acc entity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	if s.acc != nil && s.acc.Email == acc.Email {
		return goerror.ErrConflict
	}

	cp := acc
	s.acc = &cp
	return nil
}

func (s *stubAccountDB) IncrementResend(_ context.Context, id int64, maxResend int32) (*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resendCalls++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	if s.acc == nil || s.acc.ID != id || s.acc.IsValidated || s.acc.ResendCount >= maxResend {
		return nil, goerror.ErrPredicateFailed
	}

	s.acc.ResendCount++
	cp := *s.acc
	return &cp, nil
}

func (s *stubAccountDB) RegisterFailedAttempt(_ context.Context, id int64, maxAttempt int32) (*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attemptCalls++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	if s.acc == nil || s.acc.ID != id || s.acc.IsLocked || s.acc.IsValidated {
		return nil, goerror.ErrPredicateFailed
	}

	s.acc.VerificationAttempt++
	s.acc.IsLocked = s.acc.VerificationAttempt >= maxAttempt
	cp := *s.acc
	return &cp, nil
}

func (s *stubAccountDB) MarkValidated(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	if s.acc == nil || s.acc.ID != id || s.acc.IsLocked || s.acc.IsValidated {
		return goerror.ErrPredicateFailed
	}

	s.acc.IsValidated = true
	s.acc.VerificationAttempt = 0
	s.acc.ResendCount = 0
	return nil
}

type stubChallengeDB struct {
	mu sync.Mutex
	ch *entity.Challenge

	getErr    error
	putErr    error
	deleteErr error

	putCalls    int
	deleteCalls int
	lastTTL     time.Duration
}

func (s *stubChallengeDB) GetChallenge(_ context.Context, email string) (*entity.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.ch == nil || s.ch.Email != email {
		return nil, goerror.ErrNotFound
	}

	cp := *s.ch
	return &cp, nil
}

func (s *stubChallengeDB) PutChallenge(_ context.Context, ch entity.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putCalls++
	if s.putErr != nil {
		return s.putErr
	}

	cp := ch
	s.ch = &cp
	s.lastTTL = ttl
	return nil
}

func (s *stubChallengeDB) DeleteChallenge(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteCalls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if s.ch != nil && s.ch.Email == email {
		s.ch = nil
	}
	return nil
}

type stubNotifier struct {
	mu  sync.Mutex
	err error

	sentTo    []string
	sentCodes []string
	lastTTL   time.Duration
}

func (s *stubNotifier) SendVerificationCode(_ context.Context, email, code string, validFor time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.sentTo = append(s.sentTo, email)
	s.sentCodes = append(s.sentCodes, code)
	s.lastTTL = validFor
	return nil
}

type stubMessaging struct {
	mu sync.Mutex

	issued   []CodeIssuedEvent
	locked   []AccountLockedEvent
	verified []AccountVerifiedEvent
}

func (s *stubMessaging) PublishCodeIssued(_ context.Context, msg CodeIssuedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, msg)
	return nil
}

func (s *stubMessaging) PublishAccountLocked(_ context.Context, msg AccountLockedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = append(s.locked, msg)
	return nil
}

func (s *stubMessaging) PublishAccountVerified(_ context.Context, msg AccountVerifiedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = append(s.verified, msg)
	return nil
}

func (s *stubMessaging) lockedEvents() []AccountLockedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AccountLockedEvent{}, s.locked...)
}

func (s *stubMessaging) verifiedEvents() []AccountVerifiedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AccountVerifiedEvent{}, s.verified...)
}

func (s *stubMessaging) issuedEvents() []CodeIssuedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CodeIssuedEvent{}, s.issued...)
}
