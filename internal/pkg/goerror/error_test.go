package goerror

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_StatusCode(t *testing.T) {
	cases := map[Code]int{
		CodeInternal:       http.StatusInternalServerError,
		CodeInvalidFormat:  http.StatusBadRequest,
		CodeInvalidInput:   http.StatusUnprocessableEntity,
		CodeNotFound:       http.StatusNotFound,
		CodeConflict:       http.StatusConflict,
		CodeTooManyRequest: http.StatusTooManyRequests,
		CodeUnauthorized:   http.StatusUnauthorized,
		CodeLocked:         http.StatusLocked,
		CodeUnavailable:    http.StatusServiceUnavailable,
		CodeDelivery:       http.StatusBadGateway,
	}

	for code, want := range cases {
		err := NewBusiness("message", code)

		var gerr *Error
		if !errors.As(err, &gerr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if gerr.StatusCode() != want {
			t.Fatalf("code %s: expected status %d, got %d", code, want, gerr.StatusCode())
		}
	}
}

func TestNewUnavailable_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnavailable(cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause preserved in chain")
	}

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gerr.Code() != CodeUnavailable || gerr.Type() != TypeServer {
		t.Fatalf("unexpected classification: %s", gerr.String())
	}
}

func TestNewDelivery_Classification(t *testing.T) {
	err := NewDelivery(errors.New("smtp 421"))

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gerr.Code() != CodeDelivery || gerr.StatusCode() != http.StatusBadGateway {
		t.Fatalf("unexpected classification: %s", gerr.String())
	}
}

func TestNewInvalidInput_Fields(t *testing.T) {
	err := NewInvalidInput(nil, "email", "email is required")

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gerr.Fields()["email"] != "email is required" {
		t.Fatalf("expected field message preserved, got %v", gerr.Fields())
	}
}
