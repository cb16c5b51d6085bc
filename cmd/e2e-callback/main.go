package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"restaurant-storefront/internal/config"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/infra/adapters/payment"
	"restaurant-storefront/internal/infra/checksum"
	"restaurant-storefront/internal/infra/db/postgres"
)

// Sends a correctly signed gateway callback for an existing order to a running instance.
// Meant for manual end-to-end testing against the sandbox or the noop gateway.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	dev := flag.Bool("dev", true, "load config in dev mode")
	txID := flag.String("tx", "", "merchant transaction id of the order")
	code := flag.String("code", string(model.CodePaymentSuccess), "gateway code to send")
	amount := flag.Int64("amount", 0, "amount in paise; 0 reads it from the order")
	target := flag.String("url", "", "webhook url; defaults to http://localhost:<port>/api/payment/webhook")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	if *txID == "" {
		log.Fatal().Msg("-tx is required")
	}

	cfg, err := config.LoadConfig(*cfgPath, *dev)
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	creds := payment.Credentials{
		MerchantID: cfg.Payment.PhonePe.MerchantID,
		SaltKey:    cfg.Payment.PhonePe.SaltKey,
		SaltIndex:  cfg.Payment.PhonePe.SaltIndex,
	}
	if cfg.Payment.Gateway == "noop" && creds.SaltKey == "" {
		creds = payment.DevCredentials()
	}
	merchantID, salt, idx := creds.MerchantID, creds.SaltKey, creds.SaltIndex

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *amount == 0 {
		pool, err := postgres.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		order, err := postgres.NewOrderRepo(pool, nil).FindByTransactionID(ctx, nil, *txID)
		pool.Close()
		if err != nil {
			log.Fatal().Err(err).Str("transaction_id", *txID).Msg("order lookup failed")
		}
		*amount = order.Amount
	}

	payload, err := json.Marshal(model.CallbackPayload{
		Success: *code == string(model.CodePaymentSuccess),
		Code:    model.GatewayCode(*code),
		Message: "simulated callback",
		Data: model.CallbackData{
			MerchantID:            merchantID,
			MerchantTransactionID: *txID,
			TransactionID:         "SIM" + strconv.FormatInt(time.Now().UnixNano(), 36),
			Amount:                *amount,
			State:                 *code,
			ResponseCode:          "SUCCESS",
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("marshal payload")
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	sig := checksum.Header(checksum.Sign(encoded, checksum.StatusPath, salt), idx)

	body, _ := json.Marshal(map[string]string{"response": encoded, "checksum": sig})
	url := *target
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d/api/payment/webhook", cfg.Server.Port)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatal().Err(err).Msg("build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", sig)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("post callback")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	log.Info().Int("status", resp.StatusCode).Str("body", string(respBody)).Str("transaction_id", *txID).Str("code", *code).Msg("callback delivered")
}
