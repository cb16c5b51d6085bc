package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/infra/checksum"
)

var _ adapter.PaymentGateway = (*PhonePeGateway)(nil)

const (
	defaultPhonePeBaseURL = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	maxResponseBytes      = 1 << 20
)

// Credentials are the merchant secrets shared by the gateway and the verifier.
type Credentials struct {
	MerchantID string
	SaltKey    string
	SaltIndex  int
}

func (c Credentials) validate() error {
	if c.MerchantID == "" {
		return errors.New("merchant id empty")
	}
	if c.SaltKey == "" {
		return errors.New("salt key empty")
	}
	if c.SaltIndex <= 0 {
		return errors.New("salt index must be positive")
	}
	return nil
}

// PhonePeGateway implements adapter.PaymentGateway against the /pg/v1/pay endpoint.
type PhonePeGateway struct {
	creds   Credentials
	baseURL string
	client  *http.Client
}

func NewPhonePeGateway(creds Credentials, baseURL string, timeout time.Duration) (*PhonePeGateway, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = defaultPhonePeBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PhonePeGateway{
		creds:   creds,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *PhonePeGateway) Name() string { return "phonepe" }

// payRequest mirrors the gateway payload. Field order is the wire order.
type payRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	MobileNumber          string            `json:"mobileNumber,omitempty"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type paymentInstrument struct {
	Type      string `json:"type"`
	TargetApp string `json:"targetApp,omitempty"`
}

type payResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		InstrumentResponse    struct {
			Type         string `json:"type"`
			RedirectInfo struct {
				URL    string `json:"url"`
				Method string `json:"method"`
			} `json:"redirectInfo"`
			QRCode    string `json:"qrCode"`
			QRData    string `json:"qrData"`
			IntentURL string `json:"intentUrl"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

// EncodeRequest builds the base64 payload and its X-VERIFY header for intent.
func (g *PhonePeGateway) EncodeRequest(intent model.PaymentIntent) (encoded string, xVerify string, err error) {
	body, err := json.Marshal(payRequest{
		MerchantID:            intent.MerchantID,
		MerchantTransactionID: intent.TransactionID,
		MerchantUserID:        intent.PayerID,
		Amount:                intent.AmountSubunits,
		RedirectURL:           intent.RedirectURL,
		RedirectMode:          string(intent.RedirectMode),
		CallbackURL:           intent.CallbackURL,
		MobileNumber:          intent.MobileNumber,
		PaymentInstrument: paymentInstrument{
			Type:      string(intent.Instrument.Kind),
			TargetApp: intent.Instrument.TargetApp,
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal pay request: %w", err)
	}
	encoded = base64.StdEncoding.EncodeToString(body)
	sig := checksum.Sign(encoded, checksum.PayPath, g.creds.SaltKey)
	return encoded, checksum.Header(sig, g.creds.SaltIndex), nil
}

// InitiatePayment posts the signed intent and interprets the gateway answer.
func (g *PhonePeGateway) InitiatePayment(ctx context.Context, intent model.PaymentIntent) (model.InitiateResult, error) {
	const op = "phonepe.initiate"

	if intent.MerchantID != g.creds.MerchantID {
		return model.InitiateResult{}, domain.NewValidationError("merchantId", "does not match the configured merchant")
	}
	encoded, xVerify, err := g.EncodeRequest(intent)
	if err != nil {
		return model.InitiateResult{}, domain.NewGatewayError(op, "could not encode request", err)
	}

	reqBody, _ := json.Marshal(map[string]string{"request": encoded})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+checksum.PayPath, bytes.NewReader(reqBody))
	if err != nil {
		return model.InitiateResult{}, domain.NewGatewayError(op, "could not build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-VERIFY", xVerify)

	resp, err := g.client.Do(req)
	if err != nil {
		return model.InitiateResult{}, domain.NewGatewayError(op, "gateway unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.InitiateResult{}, domain.NewGatewayError(op, "could not read response", err)
	}
	var out payResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.InitiateResult{}, domain.NewGatewayError(op,
			fmt.Sprintf("unreadable response (http %d)", resp.StatusCode), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.InitiateResult{}, domain.NewGatewayError(op, gatewayMessage(out, resp.StatusCode), nil)
	}
	if !out.Success || model.GatewayCode(out.Code) != model.CodePaymentInitiated {
		return model.InitiateResult{}, domain.NewGatewayError(op, gatewayMessage(out, resp.StatusCode), nil)
	}

	ir := out.Data.InstrumentResponse
	switch {
	case ir.RedirectInfo.URL != "":
		return model.InitiateResult{RedirectURL: ir.RedirectInfo.URL}, nil
	case ir.QRCode != "":
		return model.InitiateResult{QRCode: ir.QRCode}, nil
	case ir.QRData != "" || ir.IntentURL != "":
		data := ir.QRData
		if data == "" {
			data = ir.IntentURL
		}
		uri, err := RenderQRDataURI(data)
		if err != nil {
			return model.InitiateResult{}, domain.NewGatewayError(op, "could not render qr code", err)
		}
		return model.InitiateResult{QRCode: uri}, nil
	default:
		return model.InitiateResult{}, domain.NewGatewayError(op, "response has neither redirect url nor qr code", nil)
	}
}

func gatewayMessage(out payResponse, status int) string {
	msg := out.Message
	if msg == "" {
		msg = "payment initiation failed"
	}
	if out.Code != "" {
		msg = out.Code + ": " + msg
	}
	return fmt.Sprintf("%s (http %d)", msg, status)
}
