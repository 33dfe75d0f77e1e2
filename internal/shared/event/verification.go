package event

const CodeIssuedDestination string = "verification_code_issued"

// CodeIssuedMessage is emitted after a one-time code has been persisted
// and handed to the email provider.
type CodeIssuedMessage struct {
	AccountID   int64  `json:"account_id"`
	Email       string `json:"email"`
	ResendCount int32  `json:"resend_count"`
	ExpiresAt   int64  `json:"expires_at"`
}

const AccountLockedDestination string = "verification_account_locked"

// AccountLockedMessage is emitted when an account crosses the failed
// attempt ceiling and becomes permanently locked.
type AccountLockedMessage struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
	Attempts  int32  `json:"attempts"`
}

const AccountVerifiedDestination string = "verification_account_verified"

// AccountVerifiedMessage is emitted after a code has been accepted and
// the account reached its terminal validated state.
type AccountVerifiedMessage struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
}
