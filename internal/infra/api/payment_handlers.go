package api

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/infra/logging"
	"restaurant-storefront/internal/infra/metrics"
	"restaurant-storefront/internal/usecase"
)

const retryMessage = "Payment could not be started. Please try again."

type initiateRequest struct {
	Amount        decimal.Decimal  `json:"amount"`
	MerchantID    string           `json:"merchantId"`
	TransactionID string           `json:"merchantTransactionId"`
	PayerID       string           `json:"merchantUserId"`
	RedirectURL   string           `json:"redirectUrl"`
	RedirectMode  string           `json:"redirectMode"`
	CallbackURL   string           `json:"callbackUrl"`
	MobileNumber  string           `json:"mobileNumber"`
	Instrument    string           `json:"instrument"`
	Items         []model.LineItem `json:"items"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}

	ctx := logging.WithPayerID(r.Context(), req.PayerID)
	res, err := s.checkoutUC.Initiate(ctx, usecase.CheckoutRequest{
		Amount:        req.Amount,
		MerchantID:    req.MerchantID,
		TransactionID: req.TransactionID,
		PayerID:       req.PayerID,
		ClientIP:      clientIP(r),
		RedirectURL:   req.RedirectURL,
		RedirectMode:  req.RedirectMode,
		CallbackURL:   req.CallbackURL,
		MobileNumber:  req.MobileNumber,
		Instrument:    req.Instrument,
		Items:         req.Items,
	})
	if err != nil {
		status, msg := initiateErrorStatus(err)
		if status == http.StatusInternalServerError {
			l := logging.With(ctx, s.log)
			l.Error().Err(err).Msg("initiate failed")
		}
		writeJSON(w, status, envelope{Message: msg, TransactionID: req.TransactionID})
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:       true,
		PaymentURL:    res.Result.RedirectURL,
		QRCode:        res.Result.QRCode,
		TransactionID: res.Order.TransactionID,
	})
}

// clientIP strips the port from RemoteAddr. With server.trust_proxy the RealIP middleware
// has already replaced RemoteAddr with the forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func initiateErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, domain.ReasonOf(err, "invalid request")
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "transaction id already used"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "too many payment attempts, slow down"
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway, retryMessage
	default:
		return http.StatusInternalServerError, retryMessage
	}
}

type webhookRequest struct {
	Response string `json:"response"`
	Checksum string `json:"checksum"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, reason := "fail", ""
	defer func() {
		metrics.WebhookRequests.WithLabelValues(result, reason).Inc()
		metrics.WebhookDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	var req webhookRequest
	if err := decodeBody(w, r, &req); err != nil {
		reason = "bad_json"
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}

	res, err := s.callbackUC.Handle(r.Context(), model.GatewayCallback{
		EncodedPayload: req.Response,
		Checksum:       req.Checksum,
		HeaderChecksum: r.Header.Get("X-VERIFY"),
	})
	if err != nil {
		var status int
		status, reason = webhookErrorStatus(err)
		if status == http.StatusInternalServerError {
			l := logging.With(r.Context(), s.log)
			l.Error().Err(err).Msg("webhook failed")
		}
		writeJSON(w, status, envelope{Message: reason})
		return
	}

	result = "ok"
	ok, msg := webhookReply(res.Outcome)
	writeJSON(w, http.StatusOK, envelope{Success: ok, Message: msg, TransactionID: res.TransactionID})
}

// webhookReply describes the payment, not the delivery. The status stays 200 so the
// gateway does not redeliver a callback that was already recorded.
func webhookReply(o model.Outcome) (bool, string) {
	switch o {
	case model.OutcomeSucceeded:
		return true, "Payment successful"
	case model.OutcomeFailed:
		return false, "Payment failed"
	case model.OutcomePending:
		return true, "Payment pending"
	default:
		return false, "Payment status unknown"
	}
}

func webhookErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized, "authentication"
	case errors.Is(err, domain.ErrDecoding):
		return http.StatusBadRequest, "decoding"
	case errors.Is(err, domain.ErrUnknownStatus):
		return http.StatusUnprocessableEntity, "unknown_status"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflictingOutcome):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) handleNewTransactionID(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, TransactionID: model.NewTransactionID()})
}
