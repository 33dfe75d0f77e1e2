package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/config"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/router"
	"github.com/otpgate/otpgate/internal/pkg/uid"
	"github.com/otpgate/otpgate/internal/verification/usecase"
)

type stubUsecase struct {
	issueOut *usecase.IssueOutput
	issueErr error
	issueIn  usecase.IssueInput

	verifyErr error
	verifyIn  usecase.VerifyInput
}

func (s *stubUsecase) Issue(_ context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error) {
	s.issueIn = in
	return s.issueOut, s.issueErr
}

func (s *stubUsecase) Verify(_ context.Context, in usecase.VerifyInput) error {
	s.verifyIn = in
	return s.verifyErr
}

func newTestRouter(t *testing.T, uc uc) *router.Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("failed to build config: %v", err)
	}

	r := router.NewRouter(router.Config{
		Config:     cfg,
		UUID:       uid.NewUUID(),
		Instrument: instrument.NewNoop(),
	})
	RegisterHTTPEndpoint(r, uc)

	return r
}

func doJSON(t *testing.T, r *router.Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSend_Success(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	stub := &stubUsecase{issueOut: &usecase.IssueOutput{
		AccountID:   42,
		Email:       "alice@example.com",
		ResendCount: 1,
		ExpiresAt:   now.Add(10 * time.Minute),
		CreateDate:  now,
		UpdateDate:  now,
	}}
	r := newTestRouter(t, stub)

	rec := doJSON(t, r, "/api/v1/otp/send", `{"email":"alice@example.com"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.issueIn.Email != "alice@example.com" {
		t.Fatalf("expected email forwarded, got %q", stub.issueIn.Email)
	}

	var envelope struct {
		Message string `json:"message"`
		Data    struct {
			AccountID   string `json:"account_id"`
			Email       string `json:"email"`
			ResendCount int32  `json:"resend_count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Message != "A verification code has been sent to your email." {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
	if envelope.Data.AccountID != "42" {
		t.Fatalf("expected string-encoded account id, got %q", envelope.Data.AccountID)
	}
	if envelope.Data.ResendCount != 1 {
		t.Fatalf("expected resend count 1, got %d", envelope.Data.ResendCount)
	}
}

func TestSend_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"already verified", goerror.NewBusiness("Email is already verified", goerror.CodeConflict), http.StatusConflict},
		{"resend limit", goerror.NewBusiness("Resend limit reached", goerror.CodeTooManyRequest), http.StatusTooManyRequests},
		{"store unavailable", goerror.NewUnavailable(context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"delivery failed", goerror.NewDelivery(context.DeadlineExceeded), http.StatusBadGateway},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newTestRouter(t, &stubUsecase{issueErr: c.err})

			rec := doJSON(t, r, "/api/v1/otp/send", `{"email":"alice@example.com"}`)
			if rec.Code != c.status {
				t.Fatalf("expected %d, got %d: %s", c.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSend_MalformedBody(t *testing.T) {
	r := newTestRouter(t, &stubUsecase{})

	rec := doJSON(t, r, "/api/v1/otp/send", `{"email":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSend_UnknownField(t *testing.T) {
	r := newTestRouter(t, &stubUsecase{})

	rec := doJSON(t, r, "/api/v1/otp/send", `{"email":"a@example.com","admin":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestVerify_NoContentOnSuccess(t *testing.T) {
	stub := &stubUsecase{}
	r := newTestRouter(t, stub)

	rec := doJSON(t, r, "/api/v1/otp/verify", `{"email":"alice@example.com","code":"0042"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
	if stub.verifyIn.Code != "0042" {
		t.Fatalf("expected code forwarded, got %q", stub.verifyIn.Code)
	}
}

func TestVerify_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown email", goerror.NewBusiness("No verification requested for this email", goerror.CodeNotFound), http.StatusNotFound},
		{"account locked", goerror.NewBusiness("Account is locked after too many failed attempts", goerror.CodeLocked), http.StatusLocked},
		{"wrong code", goerror.NewBusiness("Invalid code", goerror.CodeUnauthorized), http.StatusUnauthorized},
		{"validation", goerror.NewInvalidInput(nil, "code", "code must be a 4-10 digit code"), http.StatusUnprocessableEntity},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newTestRouter(t, &stubUsecase{verifyErr: c.err})

			rec := doJSON(t, r, "/api/v1/otp/verify", `{"email":"alice@example.com","code":"1234"}`)
			if rec.Code != c.status {
				t.Fatalf("expected %d, got %d: %s", c.status, rec.Code, rec.Body.String())
			}

			var envelope struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if envelope.Message == "" {
				t.Fatalf("expected error message in envelope, got %s", rec.Body.String())
			}
		})
	}
}
