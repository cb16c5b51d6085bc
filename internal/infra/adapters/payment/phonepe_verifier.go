package payment

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/infra/checksum"
)

var _ adapter.CallbackVerifier = (*PhonePeVerifier)(nil)

// PhonePeVerifier authenticates server-to-server callbacks. It holds only immutable credentials.
type PhonePeVerifier struct {
	creds Credentials
}

func NewPhonePeVerifier(creds Credentials) (*PhonePeVerifier, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	return &PhonePeVerifier{creds: creds}, nil
}

// Verify checks the checksum before looking at the payload. Unknown gateway codes return the
// decoded callback with Outcome Unknown together with a domain.ErrUnknownStatus error.
func (v *PhonePeVerifier) Verify(cb model.GatewayCallback) (model.VerifiedCallback, error) {
	const op = "phonepe.verify"

	if cb.EncodedPayload == "" {
		return model.VerifiedCallback{}, domain.NewAuthenticationError(op, "missing response")
	}
	provided := cb.Checksum
	if provided == "" {
		provided = cb.HeaderChecksum
	}
	if provided == "" {
		return model.VerifiedCallback{}, domain.NewAuthenticationError(op, "missing checksum")
	}
	sig, idx, hasIndex := checksum.ParseHeader(provided)
	if hasIndex && idx != strconv.Itoa(v.creds.SaltIndex) {
		return model.VerifiedCallback{}, domain.NewAuthenticationError(op, "unexpected key index")
	}
	if !checksum.Verify(cb.EncodedPayload, checksum.StatusPath, v.creds.SaltKey, sig) {
		return model.VerifiedCallback{}, domain.NewAuthenticationError(op, "checksum mismatch")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cb.EncodedPayload))
	if err != nil {
		return model.VerifiedCallback{}, domain.NewDecodingError(op, err)
	}
	var payload model.CallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.VerifiedCallback{}, domain.NewDecodingError(op, err)
	}
	if payload.Data.MerchantTransactionID == "" {
		return model.VerifiedCallback{}, domain.NewDecodingError(op, errors.New("merchantTransactionId missing"))
	}
	if payload.Data.MerchantID != "" && payload.Data.MerchantID != v.creds.MerchantID {
		return model.VerifiedCallback{}, domain.NewAuthenticationError(op, "merchant mismatch")
	}

	out := model.VerifiedCallback{
		Outcome: model.OutcomeFor(payload.Code),
		Payload: payload,
		Raw:     raw,
	}
	if out.Outcome == model.OutcomeUnknown {
		return out, domain.NewUnknownStatusError(string(payload.Code))
	}
	return out, nil
}
