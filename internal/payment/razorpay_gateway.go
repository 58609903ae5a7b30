package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vox-be/internal/apperr"
	"vox-be/internal/logger"
	"vox-be/internal/metrics"

	"go.uber.org/zap"
)

const (
	razorpayBaseURL = "https://api.razorpay.com"
	defaultTimeout  = 15 * time.Second
	maxResponseBody = 1 << 20
)

type razorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// ----------------- Constructor -----------------

func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) Gateway {
	if keyID == "" || keySecret == "" {
		logger.L().Warn("Razorpay credentials are empty; intent creation will fail")
	}
	if baseURL == "" {
		baseURL = razorpayBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &razorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *razorpayGateway) KeyID() string {
	return g.keyID
}

// ----------------- CreateIntent -----------------

func (g *razorpayGateway) CreateIntent(
	ctx context.Context,
	amount int64,
	currency string,
	receipt string,
) (*Intent, error) {
	const op = "razorpay.CreateIntent"

	log := logger.FromCtx(ctx).With(
		zap.String("gateway", ProviderRazorpay),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
		zap.String("receipt", receipt),
	)

	if amount <= 0 {
		return nil, apperr.Validation("amount must be a positive integer in minor units")
	}
	if len(currency) != 3 {
		return nil, apperr.Validationf("invalid currency %q", currency)
	}
	if g.keyID == "" || g.keySecret == "" {
		log.Error("Razorpay credentials missing")
		return nil, apperr.New(apperr.KindConfiguration, op, "razorpay credentials are not configured")
	}

	jsonBody, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: strings.ToUpper(currency),
		Receipt:  receipt,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "marshal request", err)
	}

	var res razorpayOrder
	if err := g.send(ctx, op, http.MethodPost, "/v1/orders", jsonBody, &res, log); err != nil {
		return nil, err
	}

	log.Info("Razorpay order created",
		zap.String("intent_id", res.ID),
		zap.String("status", res.Status),
	)

	return res.toIntent(), nil
}

// ----------------- FetchIntent -----------------

func (g *razorpayGateway) FetchIntent(ctx context.Context, intentID string) (*Intent, error) {
	const op = "razorpay.FetchIntent"

	log := logger.FromCtx(ctx).With(
		zap.String("gateway", ProviderRazorpay),
		zap.String("intent_id", intentID),
	)

	if intentID == "" {
		return nil, apperr.Validation("intent id is required")
	}
	if g.keyID == "" || g.keySecret == "" {
		return nil, apperr.New(apperr.KindConfiguration, op, "razorpay credentials are not configured")
	}

	var res razorpayOrder
	if err := g.send(ctx, op, http.MethodGet, "/v1/orders/"+url.PathEscape(intentID), nil, &res, log); err != nil {
		return nil, err
	}
	return res.toIntent(), nil
}

func (o razorpayOrder) toIntent() *Intent {
	return &Intent{
		ID:       o.ID,
		Receipt:  o.Receipt,
		Amount:   o.Amount,
		Currency: o.Currency,
		Status:   IntentStatus(o.Status),
	}
}

// send performs one authenticated call and decodes a 2xx body into out.
func (g *razorpayGateway) send(
	ctx context.Context,
	op, method, path string,
	body []byte,
	out *razorpayOrder,
	log *zap.Logger,
) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return apperr.Wrap(apperr.KindConfiguration, op, "build request", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Info("Sending request to Razorpay", zap.String("path", path))

	timer := metrics.StartTimer()
	resp, err := g.httpClient.Do(req)
	timer.ObserveMs(metrics.ProviderDuration.WithLabelValues(op))
	if err != nil {
		log.Error("Razorpay request failed", zap.Error(err), zap.Duration("elapsed", timer.Duration()))
		return apperr.Wrap(apperr.KindProviderUnavailable, op, "razorpay unreachable", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return apperr.Wrap(apperr.KindProviderUnavailable, op, "read razorpay response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("Razorpay returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return classifyStatus(op, resp.StatusCode, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		log.Error("Failed decoding Razorpay response", zap.Error(err))
		return apperr.Wrap(apperr.KindProviderUnavailable, op, "decode razorpay response", err)
	}
	if out.ID == "" {
		return apperr.New(apperr.KindProviderUnavailable, op, "razorpay response has no order id")
	}

	log.Debug("Razorpay call completed", zap.Duration("elapsed", timer.Duration()))
	return nil
}

// classifyStatus maps a provider HTTP failure onto the error taxonomy.
func classifyStatus(op string, status int, body []byte) error {
	desc := http.StatusText(status)
	var perr razorpayError
	if json.Unmarshal(body, &perr) == nil && perr.Error.Description != "" {
		desc = perr.Error.Description
	}
	cause := fmt.Errorf("razorpay status %d: %s", status, desc)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Wrap(apperr.KindConfiguration, op, "razorpay rejected credentials", cause)
	case status == http.StatusTooManyRequests || status >= 500:
		return apperr.Wrap(apperr.KindProviderUnavailable, op, "razorpay unavailable", cause)
	default:
		return apperr.New(apperr.KindProviderRejected, op, desc)
	}
}
