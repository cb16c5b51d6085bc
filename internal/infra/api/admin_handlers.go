package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/infra/logging"
	"restaurant-storefront/internal/infra/metrics"
)

// AdminInterface is the admin API surface; the wrapper below binds and validates parameters.
type AdminInterface interface {
	// (POST /api/v1/admin/session)
	CreateSession(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/orders/{transactionId})
	GetOrder(w http.ResponseWriter, r *http.Request, transactionID string)
}

type adminWrapper struct {
	handler AdminInterface
}

func (aw adminWrapper) CreateSession(w http.ResponseWriter, r *http.Request) {
	aw.handler.CreateSession(w, r)
}

func (aw adminWrapper) GetOrder(w http.ResponseWriter, r *http.Request) {
	var transactionID string
	err := runtime.BindStyledParameterWithOptions("simple", "transactionId", chi.URLParam(r, "transactionId"), &transactionID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		metrics.IncAdminRequest("get_order", "bad_request")
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid transactionId: " + err.Error()})
		return
	}
	aw.handler.GetOrder(w, r, transactionID)
}

// RegisterAdmin mounts the admin routes on r. Everything except session creation needs a token.
func RegisterAdmin(r chi.Router, h AdminInterface, auth *AuthManager) {
	aw := adminWrapper{handler: h}
	r.Post("/api/v1/admin/session", aw.CreateSession)
	r.With(RequireAdmin(auth)).Get("/api/v1/orders/{transactionId}", aw.GetOrder)
}

type sessionRequest struct {
	APIKey string `json:"apiKey"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil || s.apiKey == "" {
		metrics.IncAdminRequest("session", "disabled")
		writeJSON(w, http.StatusForbidden, envelope{Message: "admin API is disabled"})
		return
	}
	var req sessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		metrics.IncAdminRequest("session", "bad_request")
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		metrics.IncAdminRequest("session", "unauthorized")
		l := logging.With(r.Context(), s.log)
		l.Warn().Str("remote", r.RemoteAddr).Msg("admin session rejected")
		writeJSON(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
		return
	}
	tok, exp, err := s.auth.Mint()
	if err != nil {
		metrics.IncAdminRequest("session", "error")
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "could not issue token"})
		return
	}
	metrics.IncAdminRequest("session", "ok")
	writeJSON(w, http.StatusOK, sessionResponse{Token: tok, ExpiresAt: exp})
}

type orderResponse struct {
	TransactionID        string             `json:"transactionId"`
	MerchantID           string             `json:"merchantId"`
	PayerID              string             `json:"merchantUserId"`
	Amount               int64              `json:"amount"`
	AmountDisplay        string             `json:"amountDisplay"`
	Currency             string             `json:"currency"`
	Status               string             `json:"status"`
	Instrument           string             `json:"instrument"`
	GatewayTransactionID string             `json:"gatewayTransactionId,omitempty"`
	GatewayCode          string             `json:"gatewayCode,omitempty"`
	LastError            string             `json:"lastError,omitempty"`
	Items                []model.LineItem   `json:"items,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
	PaidAt               *time.Time         `json:"paidAt,omitempty"`
	Callbacks            []callbackResponse `json:"callbacks"`
}

type callbackResponse struct {
	Code       string    `json:"code"`
	Outcome    string    `json:"outcome"`
	Result     string    `json:"result"`
	Amount     int64     `json:"amount"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request, transactionID string) {
	view, err := s.orderUC.Get(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncAdminRequest("get_order", "not_found")
			writeJSON(w, http.StatusNotFound, envelope{Message: "order not found"})
			return
		}
		metrics.IncAdminRequest("get_order", "error")
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("transaction_id", transactionID).Msg("order lookup failed")
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "internal error"})
		return
	}

	o := view.Order
	resp := orderResponse{
		TransactionID:        o.TransactionID,
		MerchantID:           o.MerchantID,
		PayerID:              o.PayerID,
		Amount:               o.Amount,
		AmountDisplay:        model.FormatSubunits(o.Amount),
		Currency:             o.Currency,
		Status:               string(o.Status),
		Instrument:           string(o.Instrument.Kind),
		GatewayTransactionID: o.GatewayTransactionID,
		GatewayCode:          o.GatewayCode,
		LastError:            o.LastError,
		Items:                o.Items,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		PaidAt:               o.PaidAt,
		Callbacks:            make([]callbackResponse, 0, len(view.Callbacks)),
	}
	for _, cb := range view.Callbacks {
		resp.Callbacks = append(resp.Callbacks, callbackResponse{
			Code:       cb.Code,
			Outcome:    string(cb.Outcome),
			Result:     cb.Result,
			Amount:     cb.Amount,
			ReceivedAt: cb.ReceivedAt,
		})
	}
	metrics.IncAdminRequest("get_order", "ok")
	writeJSON(w, http.StatusOK, resp)
}
