package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/verification/entity"
)

func assertErrorCode(t *testing.T, err error, want goerror.Code) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *goerror.Error, got %T: %v", err, err)
	}
	if gerr.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, gerr.Code(), err)
	}
}

func TestIssue_FirstIssuanceCreatesAccount(t *testing.T) {
	f := newFixture(t, nil)

	out, err := f.uc.Issue(context.Background(), IssueInput{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if f.accounts.createCalls != 1 {
		t.Fatalf("expected one create call, got %d", f.accounts.createCalls)
	}
	if out.ResendCount != 1 {
		t.Fatalf("expected resend count 1 after first issuance, got %d", out.ResendCount)
	}
	if out.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", out.Email)
	}
	if want := testNow.Add(10 * time.Minute); !out.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, out.ExpiresAt)
	}

	if len(f.notifier.sentCodes) != 1 || f.notifier.sentCodes[0] != "1234" {
		t.Fatalf("expected code 1234 sent, got %v", f.notifier.sentCodes)
	}
	if f.notifier.lastTTL != 10*time.Minute {
		t.Fatalf("expected ttl 10m in notification, got %v", f.notifier.lastTTL)
	}

	if f.challenge.ch == nil {
		t.Fatalf("expected challenge stored")
	}
	if f.challenge.ch.CodeHash != f.hashOf(t, "1234") {
		t.Fatalf("stored challenge does not hash the issued code")
	}
	if f.challenge.lastTTL != 10*time.Minute {
		t.Fatalf("expected store ttl 10m, got %v", f.challenge.lastTTL)
	}

	f.drain(t)
	issued := f.messaging.issuedEvents()
	if len(issued) != 1 || issued[0].Email != "alice@example.com" {
		t.Fatalf("expected one code issued event, got %v", issued)
	}
}

func TestIssue_NormalizesEmail(t *testing.T) {
	f := newFixture(t, nil)

	out, err := f.uc.Issue(context.Background(), IssueInput{Email: "  Alice@EXAMPLE.com "})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if out.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", out.Email)
	}
}

func TestIssue_ReplacesOutstandingChallenge(t *testing.T) {
	f := newFixture(t, nil)
	f.accounts.acc = &entity.Account{ID: 7, Email: "bob@example.com", ResendCount: 2}
	f.challenge.ch = &entity.Challenge{
		Email:     "bob@example.com",
		CodeHash:  "stale-hash",
		ExpiresAt: testNow.Add(5 * time.Minute),
	}

	out, err := f.uc.Issue(context.Background(), IssueInput{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if f.accounts.createCalls != 0 {
		t.Fatalf("expected no create for existing account")
	}
	if out.ResendCount != 3 {
		t.Fatalf("expected resend count 3, got %d", out.ResendCount)
	}
	if f.challenge.ch.CodeHash != f.hashOf(t, "1234") {
		t.Fatalf("expected outstanding challenge replaced")
	}
}

func TestIssue_LosingCreateRaceUsesWinnerRow(t *testing.T) {
	f := newFixture(t, nil)
	// A concurrent request inserts the row between this request's lookup
	// and its insert; the conflicting insert is benign and issuance
	// proceeds against the winner's row.
	f.accounts.acc = &entity.Account{ID: 99, Email: "race@example.com"}
	f.accounts.missFirstGet = true

	out, err := f.uc.Issue(context.Background(), IssueInput{Email: "race@example.com"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if f.accounts.createCalls != 1 {
		t.Fatalf("expected the losing insert to be attempted once, got %d", f.accounts.createCalls)
	}
	if out.AccountID != 99 {
		t.Fatalf("expected winner's account id 99, got %d", out.AccountID)
	}
	if out.ResendCount != 1 {
		t.Fatalf("expected resend count 1 on winner's row, got %d", out.ResendCount)
	}
}

func TestIssue_ResendCeilingReached(t *testing.T) {
	f := newFixture(t, nil)
	f.accounts.acc = &entity.Account{ID: 7, Email: "carol@example.com", ResendCount: 5}

	_, err := f.uc.Issue(context.Background(), IssueInput{Email: "carol@example.com"})
	assertErrorCode(t, err, goerror.CodeTooManyRequest)

	if f.challenge.putCalls != 0 {
		t.Fatalf("expected no challenge stored when refused")
	}
	if len(f.notifier.sentCodes) != 0 {
		t.Fatalf("expected no email sent when refused")
	}
}

func TestIssue_ConfiguredResendCeiling(t *testing.T) {
	f := newFixture(t, stubConfig{"modules.verification.max_resend": 2})
	f.accounts.acc = &entity.Account{ID: 7, Email: "carol@example.com", ResendCount: 2}

	_, err := f.uc.Issue(context.Background(), IssueInput{Email: "carol@example.com"})
	assertErrorCode(t, err, goerror.CodeTooManyRequest)
}

func TestIssue_AlreadyValidated(t *testing.T) {
	f := newFixture(t, nil)
	f.accounts.acc = &entity.Account{ID: 7, Email: "dan@example.com", IsValidated: true}

	_, err := f.uc.Issue(context.Background(), IssueInput{Email: "dan@example.com"})
	assertErrorCode(t, err, goerror.CodeConflict)
}

func TestIssue_InvalidEmail(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.Issue(context.Background(), IssueInput{Email: "not-an-email"})
	assertErrorCode(t, err, goerror.CodeInvalidInput)

	if f.accounts.createCalls != 0 {
		t.Fatalf("expected no account created for invalid input")
	}
}

func TestIssue_NotifierFailureAfterPersistence(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.err = errors.New("smtp connect refused")

	_, err := f.uc.Issue(context.Background(), IssueInput{Email: "eve@example.com"})
	assertErrorCode(t, err, goerror.CodeDelivery)

	// The resend unit is consumed and the challenge durable even though
	// delivery failed, so the issued code stays verifiable.
	if f.accounts.acc.ResendCount != 1 {
		t.Fatalf("expected resend consumed, got %d", f.accounts.acc.ResendCount)
	}
	if f.challenge.ch == nil {
		t.Fatalf("expected challenge persisted before delivery attempt")
	}
}

func TestIssue_StoreUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.accounts.getErr = errors.New("connection reset")

	_, err := f.uc.Issue(context.Background(), IssueInput{Email: "frank@example.com"})
	assertErrorCode(t, err, goerror.CodeUnavailable)
}
