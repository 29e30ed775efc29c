package portone

import "encoding/json"

// Gateway-reported payment statuses
const (
	StatusReady     = "ready"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Gateway channels. Validation against the local order is strict only for
// live-channel transactions; sandbox mismatches are logged.
const (
	ChannelLive = "live"
	ChannelTest = "test"
)

// PaymentRecord is the gateway's authoritative record for one payment
type PaymentRecord struct {
	ImpUID        string `json:"imp_uid"`
	MerchantUID   string `json:"merchant_uid"`
	PayMethod     string `json:"pay_method"`
	Channel       string `json:"channel"`
	PGProvider    string `json:"pg_provider"`
	PGTID         string `json:"pg_tid"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaidAt        int64  `json:"paid_at"` // unix seconds, 0 when unpaid
	FailedAt      int64  `json:"failed_at"`
	FailReason    string `json:"fail_reason"`
	BuyerEmail    string `json:"buyer_email"`
	BuyerName     string `json:"buyer_name"`
	ReceiptURL    string `json:"receipt_url"`
	CancelAmount  int64  `json:"cancel_amount"`
	CancelReason  string `json:"cancel_reason"`
	CancelledAt   int64  `json:"cancelled_at"`

	// Raw is the response body as received, kept for audit storage
	Raw json.RawMessage `json:"-"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Now         int64  `json:"now"`
	ExpiredAt   int64  `json:"expired_at"`
}

type tokenEnvelope struct {
	Code     int           `json:"code"`
	Message  string        `json:"message"`
	Response tokenResponse `json:"response"`
}

type paymentEnvelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}
