package model

import (
	"net/url"
	"regexp"
	"strings"

	"restaurant-storefront/internal/domain"
)

type InstrumentKind string

const (
	InstrumentUPI   InstrumentKind = "UPI"    // collect through the gateway's UPI app
	InstrumentUPIQR InstrumentKind = "UPI_QR" // scannable code shown at checkout
)

const defaultTargetApp = "PHONEPE"

// Instrument is the payment method choice sent to the gateway.
type Instrument struct {
	Kind      InstrumentKind
	TargetApp string
}

func DefaultInstrument() Instrument {
	return Instrument{Kind: InstrumentUPI, TargetApp: defaultTargetApp}
}

// ParseInstrument maps the storefront's instrument name to an Instrument.
// An empty name selects the default UPI app instrument.
func ParseInstrument(name string) (Instrument, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", string(InstrumentUPI), "UPI_APP":
		return DefaultInstrument(), nil
	case string(InstrumentUPIQR):
		return Instrument{Kind: InstrumentUPIQR}, nil
	default:
		return Instrument{}, domain.NewValidationError("instrument", "unsupported instrument %q", name)
	}
}

type RedirectMode string

const (
	RedirectModePOST     RedirectMode = "POST"
	RedirectModeRedirect RedirectMode = "REDIRECT"
)

func ParseRedirectMode(s string) (RedirectMode, error) {
	switch RedirectMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", RedirectModePOST:
		return RedirectModePOST, nil
	case RedirectModeRedirect:
		return RedirectModeRedirect, nil
	default:
		return "", domain.NewValidationError("redirectMode", "unsupported mode %q", s)
	}
}

var (
	gatewayIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,35}$`)
	payerIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_@.-]{1,36}$`)
	mobilePattern    = regexp.MustCompile(`^[0-9]{10}$`)
)

// PaymentIntent is a single checkout attempt as the gateway sees it.
// AmountSubunits is always in paise.
type PaymentIntent struct {
	MerchantID     string
	TransactionID  string
	PayerID        string
	AmountSubunits int64
	RedirectURL    string
	RedirectMode   RedirectMode
	CallbackURL    string
	MobileNumber   string
	Instrument     Instrument
}

// Validate reports the first malformed field as a ValidationError.
func (p PaymentIntent) Validate() error {
	if p.MerchantID == "" {
		return domain.NewValidationError("merchantId", "is required")
	}
	if !gatewayIDPattern.MatchString(p.TransactionID) {
		return domain.NewValidationError("merchantTransactionId", "must be 1-35 characters of letters, digits, '_' or '-'")
	}
	if !payerIDPattern.MatchString(p.PayerID) {
		return domain.NewValidationError("merchantUserId", "is required and must be at most 36 characters")
	}
	if p.AmountSubunits <= 0 {
		return domain.NewValidationError("amount", "must be greater than zero")
	}
	if err := validateAbsoluteURL("redirectUrl", p.RedirectURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("callbackUrl", p.CallbackURL); err != nil {
		return err
	}
	if p.MobileNumber != "" && !mobilePattern.MatchString(p.MobileNumber) {
		return domain.NewValidationError("mobileNumber", "must be 10 digits")
	}
	if p.Instrument.Kind == "" {
		return domain.NewValidationError("instrument", "is required")
	}
	return nil
}

func validateAbsoluteURL(field, raw string) error {
	if raw == "" {
		return domain.NewValidationError(field, "is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return domain.NewValidationError(field, "must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.NewValidationError(field, "scheme must be http or https")
	}
	return nil
}

// InitiateResult is what the storefront shows the payer. At most one field is set.
type InitiateResult struct {
	RedirectURL string
	QRCode      string
}

func (r InitiateResult) IsEmpty() bool { return r.RedirectURL == "" && r.QRCode == "" }

// GatewayCode is the status code vocabulary of the gateway protocol.
type GatewayCode string

const (
	CodePaymentInitiated GatewayCode = "PAYMENT_INITIATED"
	CodePaymentSuccess   GatewayCode = "PAYMENT_SUCCESS"
	CodePaymentError     GatewayCode = "PAYMENT_ERROR"
	CodePaymentPending   GatewayCode = "PAYMENT_PENDING"
)

// Outcome is the canonical result of a verified callback.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
	OutcomeUnknown   Outcome = "unknown"
)

// OutcomeFor maps a callback code. Anything outside the known set is Unknown.
func OutcomeFor(code GatewayCode) Outcome {
	switch code {
	case CodePaymentSuccess:
		return OutcomeSucceeded
	case CodePaymentError:
		return OutcomeFailed
	case CodePaymentPending:
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}

// GatewayCallback is the raw, untrusted notification.
// Checksum comes from the body; HeaderChecksum from X-VERIFY when the gateway sends it there.
type GatewayCallback struct {
	EncodedPayload string
	Checksum       string
	HeaderChecksum string
}

// Signature is the provided hex signature without the "###<index>" suffix, lowercased.
func (c GatewayCallback) Signature() string {
	s := c.Checksum
	if s == "" {
		s = c.HeaderChecksum
	}
	sig, _, _ := strings.Cut(strings.TrimSpace(s), "###")
	return strings.ToLower(sig)
}

// CallbackPayload is the decoded body of an authenticated callback.
type CallbackPayload struct {
	Success bool         `json:"success"`
	Code    GatewayCode  `json:"code"`
	Message string       `json:"message"`
	Data    CallbackData `json:"data"`
}

type CallbackData struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"`
	State                 string `json:"state"`
	ResponseCode          string `json:"responseCode"`
}

// VerifiedCallback is the Verifier's output.
type VerifiedCallback struct {
	Outcome Outcome
	Payload CallbackPayload
	Raw     []byte
}

func (v VerifiedCallback) TransactionID() string        { return v.Payload.Data.MerchantTransactionID }
func (v VerifiedCallback) GatewayTransactionID() string { return v.Payload.Data.TransactionID }
