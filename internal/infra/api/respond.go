package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the storefront response shape: {success, message?, ...}.
type envelope struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
	QRCode        string `json:"qrCode,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
