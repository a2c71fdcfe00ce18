package sherlock

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flintlabsai/sherlock-go/pkg/keys"
)

// DefaultBaseURL is the production Sherlock registrar API.
const DefaultBaseURL = "https://api.sherlockdomains.com"

const defaultTimeout = 10 * time.Second

// Client is the SDK entry point. It composes the identity key, the
// challenge authenticator, and the payment negotiator behind one API.
type Client struct {
	baseURL    string
	key        *keys.KeyPair
	logger     *zap.Logger
	transport  *transport
	auth       *Authenticator
	negotiator *negotiator

	// staged by options, consumed by New
	doer       Doer
	limiter    *rate.Limiter
	registerer prometheus.Registerer
	timeout    time.Duration
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithBaseURL points the client at a different registrar, e.g. a
// staging environment or a test stub.
func WithBaseURL(u string) Option {
	return func(c *Client) error {
		if u == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.baseURL = u
		return nil
	}
}

// WithHTTPClient sets a custom http.Client, overriding the default
// timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.doer = hc
		return nil
	}
}

// WithDoer injects an arbitrary transport. Primarily a testing seam.
func WithDoer(d Doer) Option {
	return func(c *Client) error {
		c.doer = d
		return nil
	}
}

// WithLogger attaches a zap logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// WithRateLimit caps outbound calls at rps requests per second with
// the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithMetrics registers request, handshake, and negotiation counters
// with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		c.registerer = reg
		return nil
	}
}

// WithTimeout sets the default http.Client timeout. Ignored when a
// custom client or Doer is injected.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// New creates a Client authenticating as key.
//
//	c, err := sherlock.New(key,
//	    sherlock.WithLogger(logger),
//	    sherlock.WithRateLimit(5, 10),
//	)
func New(key *keys.KeyPair, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, fmt.Errorf("key pair is required")
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		key:     key,
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: c.timeout}
	}

	var metrics *clientMetrics
	if c.registerer != nil {
		metrics = newClientMetrics(c.registerer)
	}
	c.transport = &transport{
		doer:    c.doer,
		limiter: c.limiter,
		logger:  c.logger,
		metrics: metrics,
	}
	c.auth = newAuthenticator(key, c.baseURL, c.transport, c.logger)
	c.negotiator = &negotiator{baseURL: c.baseURL, transport: c.transport, logger: c.logger}
	return c, nil
}

// Authenticator exposes token lifecycle control: forced refresh, the
// refresh grant, and the expiry hint.
func (c *Client) Authenticator() *Authenticator {
	return c.auth
}

// PublicKeyHex returns the identity this client authenticates as.
func (c *Client) PublicKeyHex() string {
	return c.key.PublicKeyHex()
}

// PurchaseDomain negotiates a domain purchase end to end: obtain a
// bearer token, request the offer set, pick the first offer that
// supports method, and submit the payment request. The returned
// PaymentInstruction tells the caller how to settle (card checkout or
// lightning invoice); settlement itself happens outside this client.
//
// When the offer request is rejected with a 401 — a stale cached
// token — the client forces exactly one re-authentication and retries
// the offer request once. That is the only retry policy in the SDK.
func (c *Client) PurchaseDomain(ctx context.Context, intent PurchaseIntent, method PaymentMethod) (*PaymentInstruction, error) {
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	set, err := c.negotiator.requestOffer(ctx, tok, intent)
	if isUnauthorized(err) {
		c.logger.Debug("offer request unauthorized, re-authenticating once")
		tok, err = c.auth.ForceRefresh(ctx)
		if err != nil {
			return nil, err
		}
		set, err = c.negotiator.requestOffer(ctx, tok, intent)
	}
	if err != nil {
		return nil, err
	}

	offer, ok := set.offerForMethod(method)
	if !ok {
		return nil, fmt.Errorf("%w: no offer accepts %s", ErrUnsupportedPaymentMethod, method)
	}
	return c.negotiator.requestPayment(ctx, set, offer.ID, method)
}

// RequestOffer runs only the first negotiation step, for callers that
// want to inspect offers and choose one themselves before calling
// RequestPayment. No retry is applied here.
func (c *Client) RequestOffer(ctx context.Context, intent PurchaseIntent) (*OfferSet, error) {
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.negotiator.requestOffer(ctx, tok, intent)
}

// RequestPayment submits the chosen offer and payment method for an
// offer set previously obtained from RequestOffer.
func (c *Client) RequestPayment(ctx context.Context, set *OfferSet, offerID string, method PaymentMethod) (*PaymentInstruction, error) {
	return c.negotiator.requestPayment(ctx, set, offerID, method)
}
