package payment

import "context"

// Gateway creates payment intents with the external provider.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*Intent, error)
	// KeyID is the public key the checkout widget is opened with.
	KeyID() string
}

// IntentFetcher is implemented by gateways that can read back an intent.
type IntentFetcher interface {
	FetchIntent(ctx context.Context, intentID string) (*Intent, error)
}
