// Package payments is the outbound command surface to the external payment
// processor. The processor is opaque: this package knows its operations and
// its error classes, nothing about its internals. Every call goes through
// the resilient executor; none of these calls belong on the webhook
// acknowledgment path — receipts and the like are enqueued as automation
// tasks and invoked from the queue worker.
package payments

import (
	"context"
	"time"

	"github.com/givepulse/givepulse/internal/app/executor"
)

// ─── Processor Types ────────────────────────────────────────────────────────

// CheckoutSession is a hosted checkout the processor created for a donor.
type CheckoutSession struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckoutParams describes the session to create.
type CheckoutParams struct {
	CampaignID string
	Amount     int64
	Currency   string
	Donor      string
	Recurring  bool
}

// Product is a processor-side product record (one per campaign).
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Price is a processor-side price attached to a product.
type Price struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Recurring bool   `json:"recurring"`
}

// Subscription is a recurring-donation agreement.
type Subscription struct {
	ID      string `json:"id"`
	PriceID string `json:"price_id"`
	Donor   string `json:"donor"`
	Status  string `json:"status"`
}

// ProcessorAPI is the raw processor transport. Implementations return
// *domain.ProcessorError for classified API failures so the executor can
// distinguish retryable from non-retryable ones.
type ProcessorAPI interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CreateProduct(ctx context.Context, name string) (*Product, error)
	CreatePrice(ctx context.Context, productID string, amount int64, currency string, recurring bool) (*Price, error)
	CreateSubscription(ctx context.Context, priceID, donor string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// ─── Client ─────────────────────────────────────────────────────────────────

// Client wraps a ProcessorAPI with the retry executor.
type Client struct {
	api    ProcessorAPI
	exec   *executor.Executor
	policy executor.Policy
}

// NewClient creates a client running every call under policy.
func NewClient(api ProcessorAPI, exec *executor.Executor, policy executor.Policy) *Client {
	return &Client{api: api, exec: exec, policy: policy}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	v, err := c.exec.Execute(ctx, "create_checkout_session", func(ctx context.Context) (any, error) {
		return c.api.CreateCheckoutSession(ctx, p)
	}, c.policy)
	if err != nil {
		return nil, err
	}
	return v.(*CheckoutSession), nil
}

func (c *Client) CreateProduct(ctx context.Context, name string) (*Product, error) {
	v, err := c.exec.Execute(ctx, "create_product", func(ctx context.Context) (any, error) {
		return c.api.CreateProduct(ctx, name)
	}, c.policy)
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

func (c *Client) CreatePrice(ctx context.Context, productID string, amount int64, currency string, recurring bool) (*Price, error) {
	v, err := c.exec.Execute(ctx, "create_price", func(ctx context.Context) (any, error) {
		return c.api.CreatePrice(ctx, productID, amount, currency, recurring)
	}, c.policy)
	if err != nil {
		return nil, err
	}
	return v.(*Price), nil
}

func (c *Client) CreateSubscription(ctx context.Context, priceID, donor string) (*Subscription, error) {
	v, err := c.exec.Execute(ctx, "create_subscription", func(ctx context.Context) (any, error) {
		return c.api.CreateSubscription(ctx, priceID, donor)
	}, c.policy)
	if err != nil {
		return nil, err
	}
	return v.(*Subscription), nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := c.exec.Execute(ctx, "cancel_subscription", func(ctx context.Context) (any, error) {
		return nil, c.api.CancelSubscription(ctx, subscriptionID)
	}, c.policy)
	return err
}

func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	v, err := c.exec.Execute(ctx, "retrieve_session", func(ctx context.Context) (any, error) {
		return c.api.RetrieveSession(ctx, sessionID)
	}, c.policy)
	if err != nil {
		return nil, err
	}
	return v.(*CheckoutSession), nil
}
