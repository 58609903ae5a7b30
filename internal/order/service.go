package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vox-be/internal/apperr"
	"vox-be/internal/catalog"
	"vox-be/internal/logger"
	"vox-be/internal/metrics"
	"vox-be/internal/notify"
	"vox-be/internal/payment"
	"vox-be/internal/utils"

	"go.uber.org/zap"
)

// AmountTolerance is the largest accepted difference, in minor units, between
// a client-supplied total and the server price.
const AmountTolerance = int64(1)

// Checkout stages, logged on every transition.
const (
	stageInitiated     = "initiated"
	stageIntentCreated = "intent_created"
	stageConfirmed     = "confirmed"
	stagePersisted     = "persisted"
	stageFailed        = "failed"
)

type Service interface {
	CreateIntent(ctx context.Context, in CheckoutInput) (*IntentResult, error)
	PlaceOrder(ctx context.Context, in CheckoutInput) (*Order, error)
	ListOrders(ctx context.Context, userID string) ([]*Order, error)
	GetOrder(ctx context.Context, userID string, sequentialID int64) (*Order, error)

	// MarkPaid and MarkFailed apply webhook outcomes and report whether the
	// order changed; notifications go out only when it did.
	MarkPaid(ctx context.Context, intentID, paymentID string) (bool, error)
	MarkFailed(ctx context.Context, intentID, paymentID string) (bool, error)
}

// Quoter prices a cart from catalog state.
type Quoter interface {
	Quote(ctx context.Context, lines []catalog.Line) (*catalog.Quote, error)
}

type service struct {
	repo      Repository
	intents   payment.Repository
	gateway   payment.Gateway
	pricer    Quoter
	publisher notify.Publisher
	apiSecret string
	now       func() time.Time
}

func NewService(
	repo Repository,
	intents payment.Repository,
	gateway payment.Gateway,
	pricer Quoter,
	publisher notify.Publisher,
	apiSecret string,
) Service {
	return &service{
		repo:      repo,
		intents:   intents,
		gateway:   gateway,
		pricer:    pricer,
		publisher: publisher,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

// validate checks the snapshot and prices it. The returned quote is the only
// amount the rest of checkout trusts.
func (s *service) validate(ctx context.Context, in CheckoutInput) (*catalog.Quote, error) {
	if err := in.Address.Validate(); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	quote, err := s.pricer.Quote(ctx, in.Items)
	if err != nil {
		return nil, err
	}
	if quote.Total <= 0 {
		return nil, apperr.Validation("order amount must be positive")
	}

	if in.ClientTotal != nil && abs(*in.ClientTotal-quote.Total) > AmountTolerance {
		return nil, apperr.Validation("order total does not match current prices, please refresh your cart")
	}

	return quote, nil
}

func (s *service) CreateIntent(ctx context.Context, in CheckoutInput) (*IntentResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "CreateIntent"),
	)
	log.Info("checkout stage", zap.String("stage", stageInitiated))

	quote, err := s.validate(ctx, in)
	if err != nil {
		log.Warn("checkout stage", zap.String("stage", stageFailed), zap.Error(err))
		metrics.IntentTotal.WithLabelValues(outcomeFor(err)).Inc()
		return nil, err
	}

	receipt := utils.GenerateReceipt()
	intent, err := s.gateway.CreateIntent(ctx, quote.Total, payment.CurrencyINR, receipt)
	if err != nil {
		log.Error("checkout stage",
			zap.String("stage", stageFailed),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		metrics.IntentTotal.WithLabelValues(outcomeFor(err)).Inc()
		return nil, err
	}

	cart, err := json.Marshal(itemsFromQuote(quote))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode cart", "something went wrong", err)
	}
	intent.Cart = cart
	intent.UserID = in.UserID
	if intent.Status == "" {
		intent.Status = payment.IntentCreated
	}
	if err := s.intents.SaveIntent(ctx, intent); err != nil {
		log.Error("failed to record payment intent", zap.String("intent_id", intent.ID), zap.Error(err))
		metrics.IntentTotal.WithLabelValues(outcomeFor(err)).Inc()
		return nil, err
	}

	log.Info("checkout stage",
		zap.String("stage", stageIntentCreated),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", intent.Amount),
	)
	metrics.IntentTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	return &IntentResult{Intent: intent, KeyID: s.gateway.KeyID()}, nil
}

func (s *service) PlaceOrder(ctx context.Context, in CheckoutInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "PlaceOrder"),
		zap.String("payment_method", string(in.Method)),
	)
	log.Info("checkout stage", zap.String("stage", stageInitiated))

	var (
		o   *Order
		err error
	)
	switch in.Method {
	case payment.MethodCOD:
		o, err = s.placeCOD(ctx, in)
	case payment.MethodRazorpay:
		o, err = s.placeGateway(ctx, in)
	default:
		err = apperr.Validation("unsupported payment method")
	}

	if err != nil {
		metrics.CheckoutTotal.WithLabelValues(string(in.Method), outcomeFor(err)).Inc()
		log.Warn("checkout stage",
			zap.String("stage", stageFailed),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	return o, nil
}

// afterPaymentError is a storage failure for a customer who has already
// been charged.
type afterPaymentError struct{ error }

func (e afterPaymentError) Unwrap() error { return e.error }

func (s *service) placeCOD(ctx context.Context, in CheckoutInput) (*Order, error) {
	quote, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	o := &Order{
		UserID:        in.UserID,
		Address:       *in.Address,
		Items:         itemsFromQuote(quote),
		PaymentMethod: payment.MethodCOD,
		Amount:        quote.Total,
		Currency:      payment.CurrencyINR,
		Status:        StatusPending,
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	s.persisted(ctx, o, notify.EventOrderPlaced)
	return o, nil
}

func (s *service) placeGateway(ctx context.Context, in CheckoutInput) (*Order, error) {
	c := in.Confirmation
	if !c.Complete() {
		return nil, apperr.Validation("missing payment confirmation")
	}

	log := logger.FromCtx(ctx).With(
		zap.String("intent_id", utils.MaskID(c.IntentID)),
		zap.String("payment_id", utils.MaskID(c.PaymentID)),
	)

	// Nothing about the payment is trusted before the signature checks out.
	if !payment.VerifyConfirmation(c, s.apiSecret) {
		log.Warn("payment signature mismatch")
		return nil, apperr.New(apperr.KindAuthentication, "verify payment", "payment signature mismatch")
	}
	log.Info("checkout stage", zap.String("stage", stageConfirmed))

	// A retry gets the first order back whatever the catalog has done since.
	existing, err := s.repo.GetByPaymentID(ctx, c.PaymentID)
	if err == nil {
		log.Info("order already placed for payment", zap.Int64("sequential_id", existing.SequentialID))
		metrics.CheckoutTotal.WithLabelValues(string(payment.MethodRazorpay), metrics.OutcomeDuplicate).Inc()
		return existing, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return nil, s.storageAfterPayment(ctx, c, err)
	}

	if err := in.Address.Validate(); err != nil {
		return nil, err
	}

	intent, err := s.lookupIntent(ctx, c.IntentID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return nil, err
		}
		return nil, s.storageAfterPayment(ctx, c, err)
	}

	items, err := s.chargedItems(ctx, in, intent)
	if err != nil {
		return nil, err
	}

	if in.ClientTotal != nil && abs(*in.ClientTotal-intent.Amount) > AmountTolerance {
		log.Warn("client total differs from charged amount",
			zap.Int64("client_total", *in.ClientTotal),
			zap.Int64("charged", intent.Amount),
		)
	}

	o := &Order{
		UserID:            in.UserID,
		Address:           *in.Address,
		Items:             items,
		PaymentMethod:     payment.MethodRazorpay,
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		RazorpayOrderID:   utils.StrPtr(c.IntentID),
		RazorpayPaymentID: utils.StrPtr(c.PaymentID),
		RazorpaySignature: utils.StrPtr(c.Signature),
		Status:            StatusPaid,
	}
	if o.Currency == "" {
		o.Currency = payment.CurrencyINR
	}

	err = s.repo.CreateOrder(ctx, o)
	if errors.Is(err, ErrDuplicatePayment) {
		// a concurrent retry won the insert
		existing, getErr := s.repo.GetByPaymentID(ctx, c.PaymentID)
		if getErr != nil {
			return nil, s.storageAfterPayment(ctx, c, getErr)
		}
		metrics.CheckoutTotal.WithLabelValues(string(payment.MethodRazorpay), metrics.OutcomeDuplicate).Inc()
		return existing, nil
	}
	if err != nil {
		return nil, s.storageAfterPayment(ctx, c, err)
	}

	if _, err := s.intents.UpdateIntentStatus(ctx, c.IntentID, payment.IntentCaptured); err != nil {
		log.Warn("failed to update intent status", zap.Error(err))
	}

	s.persisted(ctx, o, notify.EventOrderPlaced)
	return o, nil
}

// chargedItems returns the lines the customer paid for. Intents recorded at
// checkout carry the priced cart; intents only known to the provider are
// re-priced and must still add up to the charged amount.
func (s *service) chargedItems(ctx context.Context, in CheckoutInput, intent *payment.Intent) ([]Item, error) {
	if len(intent.Cart) > 0 {
		var items []Item
		if err := json.Unmarshal(intent.Cart, &items); err != nil {
			return nil, s.storageAfterPayment(ctx, in.Confirmation,
				apperr.Wrap(apperr.KindStorage, "decode intent cart", "storage failure", err))
		}
		return items, nil
	}

	if len(in.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	quote, err := s.pricer.Quote(ctx, in.Items)
	if err != nil {
		logger.FromCtx(ctx).Error("cart of a verified payment could not be priced",
			zap.String("intent_id", in.Confirmation.IntentID),
			zap.String("payment_id", in.Confirmation.PaymentID),
			zap.Error(err),
		)
		return nil, err
	}
	if abs(intent.Amount-quote.Total) > AmountTolerance {
		logger.FromCtx(ctx).Error("charged amount does not match cart",
			zap.String("intent_id", in.Confirmation.IntentID),
			zap.String("payment_id", in.Confirmation.PaymentID),
			zap.Int64("charged", intent.Amount),
			zap.Int64("expected", quote.Total),
		)
		return nil, apperr.Validation("payment amount does not match order total")
	}
	return itemsFromQuote(quote), nil
}

// lookupIntent prefers the recorded intent and falls back to the provider
// for intents created before they were recorded.
func (s *service) lookupIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	intent, err := s.intents.GetIntent(ctx, intentID)
	if err == nil {
		return intent, nil
	}
	if !errors.Is(err, payment.ErrIntentNotFound) {
		return nil, err
	}

	fetcher, ok := s.gateway.(payment.IntentFetcher)
	if !ok {
		return nil, apperr.Validation("unknown payment intent")
	}
	intent, err = fetcher.FetchIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// storageAfterPayment is the case where the customer has been charged but no
// order exists. The full identifiers are logged for reconciliation.
func (s *service) storageAfterPayment(ctx context.Context, c payment.Confirmation, err error) error {
	logger.FromCtx(ctx).Error("order persistence failed after verified payment",
		zap.String("intent_id", c.IntentID),
		zap.String("payment_id", c.PaymentID),
		zap.Error(err),
	)

	// Provider kinds keep their status so a retryable outage stays retryable.
	if apperr.KindOf(err) == apperr.KindInternal {
		err = apperr.Storage("persist order", err)
	}
	return afterPaymentError{err}
}

func (s *service) persisted(ctx context.Context, o *Order, event string) {
	logger.FromCtx(ctx).Info("checkout stage",
		zap.String("stage", stagePersisted),
		zap.String("order_id", o.ID.String()),
		zap.Int64("sequential_id", o.SequentialID),
		zap.String("status", string(o.Status)),
	)
	metrics.CheckoutTotal.WithLabelValues(string(o.PaymentMethod), metrics.OutcomeSuccess).Inc()
	s.publish(ctx, o, event)
}

// publish never fails the caller; the order is already durable.
func (s *service) publish(ctx context.Context, o *Order, event string) {
	e := notify.Event{
		Type:          event,
		OrderID:       o.ID.String(),
		SequentialID:  o.SequentialID,
		UserID:        o.UserID,
		Amount:        o.Amount,
		Currency:      o.Currency,
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		OccurredAt:    s.now().UTC(),
	}
	if o.RazorpayOrderID != nil {
		e.RazorpayOrderID = *o.RazorpayOrderID
	}
	if o.RazorpayPaymentID != nil {
		e.PaymentID = *o.RazorpayPaymentID
	}

	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order event",
			zap.String("event", event),
			zap.Int64("sequential_id", o.SequentialID),
			zap.Error(err),
		)
	}
}

func (s *service) ListOrders(ctx context.Context, userID string) ([]*Order, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "list orders", "unauthorized")
	}
	return s.repo.ListByUser(ctx, userID)
}

// GetOrder hides orders of other users behind not-found.
func (s *service) GetOrder(ctx context.Context, userID string, sequentialID int64) (*Order, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "get order", "unauthorized")
	}

	o, err := s.repo.GetBySequentialID(ctx, sequentialID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "get order", "order not found")
	}
	if err != nil {
		return nil, err
	}
	if o.UserID == nil || *o.UserID != userID {
		return nil, apperr.New(apperr.KindNotFound, "get order", "order not found")
	}
	return o, nil
}

func (s *service) MarkPaid(ctx context.Context, intentID, paymentID string) (bool, error) {
	o, changed, err := s.repo.MarkPaid(ctx, intentID, paymentID)
	if err != nil {
		return false, err
	}
	if changed {
		logger.FromCtx(ctx).Info("order marked paid",
			zap.Int64("sequential_id", o.SequentialID),
			zap.String("payment_id", utils.MaskID(paymentID)),
		)
		s.publish(ctx, o, notify.EventOrderPaid)
	}
	return changed, nil
}

func (s *service) MarkFailed(ctx context.Context, intentID, paymentID string) (bool, error) {
	o, changed, err := s.repo.MarkFailed(ctx, intentID)
	if err != nil {
		return false, err
	}
	if changed {
		logger.FromCtx(ctx).Warn("order payment failed",
			zap.Int64("sequential_id", o.SequentialID),
			zap.String("payment_id", utils.MaskID(paymentID)),
		)
		s.publish(ctx, o, notify.EventOrderPaymentFailed)
	}
	return changed, nil
}

func outcomeFor(err error) string {
	var ape afterPaymentError
	if errors.As(err, &ape) {
		return metrics.OutcomeStorageErrorAfterPayment
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return metrics.OutcomeValidationError
	case apperr.KindAuthentication:
		return metrics.OutcomeAuthenticationError
	case apperr.KindProviderUnavailable:
		return metrics.OutcomeProviderUnavailable
	case apperr.KindProviderRejected:
		return metrics.OutcomeProviderRejected
	case apperr.KindConfiguration:
		return metrics.OutcomeConfigurationError
	default:
		return metrics.OutcomeStorageError
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
