package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"vox-be/internal/logger"
	"vox-be/internal/metrics"
	"vox-be/internal/payment"
	"vox-be/internal/utils"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"

	maxBody = 1 << 20
)

// Webhook results, used as the metric label.
const (
	resultProcessed        = "processed"
	resultDuplicate        = "duplicate"
	resultIgnored          = "ignored"
	resultInvalidSignature = "invalid_signature"
	resultInvalidPayload   = "invalid_payload"
	resultFailed           = "failed"
)

// OrderUpdater applies payment outcomes to orders. Both calls must be
// conditional so that the client callback and the webhook can race.
type OrderUpdater interface {
	MarkPaid(ctx context.Context, intentID, paymentID string) (bool, error)
	MarkFailed(ctx context.Context, intentID, paymentID string) (bool, error)
}

type Handler struct {
	orders   OrderUpdater
	payments payment.Repository
	secret   string
}

func NewWebhookHandler(orders OrderUpdater, payments payment.Repository, webhookSecret string) *Handler {
	return &Handler{
		orders:   orders,
		payments: payments,
		secret:   webhookSecret,
	}
}

// PaymentWebhookHandler handles POST /payment/webhook. The raw body is read
// before anything else touches it; the signature covers those exact bytes.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("handler", "PaymentWebhook"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		metrics.WebhookTotal.WithLabelValues("unknown", resultInvalidPayload).Inc()
		writeStatus(w, http.StatusBadRequest, "error", "failed to read body")
		return
	}

	if !payment.VerifyWebhook(body, r.Header.Get(SignatureHeader), h.secret) {
		log.Warn("webhook signature mismatch", zap.String("remote_addr", r.RemoteAddr))
		metrics.WebhookTotal.WithLabelValues("unknown", resultInvalidSignature).Inc()
		writeStatus(w, http.StatusBadRequest, "error", "invalid signature")
		return
	}

	var event payment.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Event == "" {
		log.Warn("invalid webhook payload", zap.Error(err))
		metrics.WebhookTotal.WithLabelValues("unknown", resultInvalidPayload).Inc()
		writeStatus(w, http.StatusBadRequest, "error", "invalid payload")
		return
	}

	entity := event.Payload.Payment.Entity
	eventID := resolveEventID(r, event, body)
	log = log.With(
		zap.String("event", event.Event),
		zap.String("event_id", eventID),
		zap.String("intent_id", utils.MaskID(entity.OrderID)),
		zap.String("payment_id", utils.MaskID(entity.ID)),
	)

	webhookID, dup, err := h.payments.SavePaymentWebhook(
		ctx,
		payment.ProviderRazorpay,
		eventID,
		event.Event,
		entity.OrderID,
		body,
	)
	if err != nil {
		log.Error("failed to record webhook", zap.Error(err))
		metrics.WebhookTotal.WithLabelValues(event.Event, resultFailed).Inc()
		writeStatus(w, http.StatusInternalServerError, "error", "internal error")
		return
	}
	if dup {
		log.Info("duplicate webhook skipped")
		metrics.WebhookTotal.WithLabelValues(event.Event, resultDuplicate).Inc()
		writeStatus(w, http.StatusOK, "status", "ok")
		return
	}

	result, err := h.apply(logger.WithLogger(ctx, log), event.Event, entity)
	if err != nil {
		log.Error("webhook processing failed", zap.Error(err))
		if markErr := h.payments.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("failed to mark webhook failed", zap.Error(markErr))
		}
		metrics.WebhookTotal.WithLabelValues(event.Event, resultFailed).Inc()
		writeStatus(w, http.StatusInternalServerError, "error", "processing failed")
		return
	}

	if err := h.payments.MarkWebhookProcessed(ctx, webhookID); err != nil {
		// the side effects are idempotent; a redelivery is harmless
		log.Warn("failed to mark webhook processed", zap.Error(err))
	}

	metrics.WebhookTotal.WithLabelValues(event.Event, result).Inc()
	writeStatus(w, http.StatusOK, "status", "ok")
}

func (h *Handler) apply(ctx context.Context, eventType string, entity payment.PaymentEntity) (string, error) {
	log := logger.FromCtx(ctx)

	switch eventType {
	case payment.EventPaymentCaptured, payment.EventOrderPaid, payment.EventPaymentFailed:
		if entity.OrderID == "" {
			// Payments made outside checkout carry no order. Redelivery
			// would not change that, so the event is acked.
			log.Warn("webhook event without order id ignored")
			return resultIgnored, nil
		}
	}

	switch eventType {
	case payment.EventPaymentCaptured, payment.EventOrderPaid:
		if _, err := h.payments.UpdateIntentStatus(ctx, entity.OrderID, payment.IntentCaptured); err != nil {
			return "", err
		}
		changed, err := h.orders.MarkPaid(ctx, entity.OrderID, entity.ID)
		if err != nil {
			return "", err
		}
		if !changed {
			// Either the order is already Paid or the customer never came
			// back to the confirmation page. The captured intent is the
			// record reconciliation works from.
			log.Info("no order transitioned to paid")
		}
		return resultProcessed, nil

	case payment.EventPaymentFailed:
		if _, err := h.payments.UpdateIntentStatus(ctx, entity.OrderID, payment.IntentFailed); err != nil {
			return "", err
		}
		if _, err := h.orders.MarkFailed(ctx, entity.OrderID, entity.ID); err != nil {
			return "", err
		}
		log.Warn("payment failed",
			zap.String("error_code", entity.ErrorCode),
			zap.String("error_description", entity.ErrorDescription),
		)
		return resultProcessed, nil
	}

	log.Debug("webhook event ignored")
	return resultIgnored, nil
}

// resolveEventID prefers the provider's delivery id. Without it the event
// type and payment id identify the delivery, and as a last resort the body
// digest does.
func resolveEventID(r *http.Request, event payment.WebhookEvent, body []byte) string {
	if id := r.Header.Get(EventIDHeader); id != "" {
		return id
	}
	if pid := event.Payload.Payment.Entity.ID; pid != "" {
		return event.Event + ":" + pid
	}
	sum := sha256.Sum256(body)
	return event.Event + ":" + hex.EncodeToString(sum[:])
}

func writeStatus(w http.ResponseWriter, code int, key, value string) {
	utils.WriteJSON(w, code, map[string]string{key: value})
}
