package inbound

import "time"

type SendRequest struct {
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number,omitempty"`
}

type SendResponse struct {
	AccountID   int64     `json:"account_id,string"`
	Email       string    `json:"email"`
	ResendCount int32     `json:"resend_count"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreateDate  time.Time `json:"create_date"`
	UpdateDate  time.Time `json:"update_date"`
}

func (SendResponse) Message() string {
	return "A verification code has been sent to your email."
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
