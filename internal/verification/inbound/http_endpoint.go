package inbound

import (
	"github.com/otpgate/otpgate/internal/pkg/router"
	"github.com/otpgate/otpgate/internal/verification/usecase"
)

// HTTPEndpoint exposes HTTP handlers for the email verification workflow.
type HTTPEndpoint struct {
	uc uc
}

// Send issues a one-time code to an email address.
// @Summary Send verification code
// @Description Creates the account on first use, consumes one unit of the resend budget, and emails a fresh code that replaces any outstanding one.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body SendRequest true "Send payload"
// @Success 200 {object} router.successResponse{data=SendResponse} "Issuance result"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 409 {object} router.errorResponse "Email already verified"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Resend limit reached"
// @Failure 502 {object} router.errorResponse "Email delivery failed"
// @Failure 503 {object} router.errorResponse "Backing store unavailable"
// @Router /api/v1/otp/send [post]
func (h *HTTPEndpoint) Send(r *router.Request) (any, error) {
	var req SendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Issue(r.Context(), usecase.IssueInput{
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
	})
	if err != nil {
		return nil, err
	}

	return SendResponse{
		AccountID:   resp.AccountID,
		Email:       resp.Email,
		ResendCount: resp.ResendCount,
		ExpiresAt:   resp.ExpiresAt,
		CreateDate:  resp.CreateDate,
		UpdateDate:  resp.UpdateDate,
	}, nil
}

// Verify checks a submitted code.
// @Summary Verify a code
// @Description Validates the submitted code against the outstanding challenge. Rejected codes count toward the attempt ceiling; crossing it locks the account permanently.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verify payload"
// @Success 204 "Code accepted"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "No active code, expired code, or wrong code"
// @Failure 404 {object} router.errorResponse "No verification requested for this email"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 423 {object} router.errorResponse "Account locked"
// @Failure 503 {object} router.errorResponse "Backing store unavailable"
// @Router /api/v1/otp/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Email: req.Email,
		Code:  req.Code,
	}); err != nil {
		return nil, err
	}

	return nil, nil
}
