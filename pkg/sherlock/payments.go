package sherlock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// negotiator drives the offer → selection → payment-request sequence
// for one priced operation. The steps are strictly ordered and each is
// a single remote call: re-requesting an offer would mint a different
// context token, and silently retrying a payment submission risks a
// duplicate charge attempt, so transient failures are surfaced, never
// masked.
type negotiator struct {
	baseURL   string
	transport *transport
	logger    *zap.Logger
}

// requestOffer submits the purchase intent and parses the
// payment-required response into an OfferSet. Payment-required is the
// only acceptable outcome: a success status is itself an error.
func (n *negotiator) requestOffer(ctx context.Context, tok AccessToken, intent PurchaseIntent) (*OfferSet, error) {
	if err := intent.validate(); err != nil {
		return nil, err
	}

	status, body, err := n.transport.send(ctx, http.MethodPost,
		n.baseURL+"/api/v0/domains/purchase", purchaseRequest{
			Domain:             intent.Domain,
			SearchID:           intent.SearchID,
			ContactInformation: intent.Contact,
		}, bearerAuth(tok))
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusPaymentRequired:
		// the negotiated outcome
	case status >= 200 && status < 300:
		return nil, apiError(ErrUnexpectedSuccess, status, body)
	default:
		return nil, apiError(ErrOfferRequestFailed, status, body)
	}

	var set OfferSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOfferSet, err)
	}
	if set.PaymentRequestURL == "" || set.PaymentContextToken == "" || len(set.Offers) == 0 {
		return nil, fmt.Errorf("%w: missing payment_request_url, payment_context_token, or offers", ErrMalformedOfferSet)
	}

	n.logger.Debug("offer set received",
		zap.String("domain", intent.Domain),
		zap.Int("offers", len(set.Offers)),
		zap.String("version", set.Version),
	)
	n.transport.metrics.observeNegotiation()
	return &set, nil
}

// requestPayment submits the chosen offer and method to the offer
// set's payment_request_url. The call authorizes with the payment
// context token under the L402 scheme — not the bearer token.
func (n *negotiator) requestPayment(ctx context.Context, set *OfferSet, offerID string, method PaymentMethod) (*PaymentInstruction, error) {
	offer, ok := set.Offer(offerID)
	if !ok {
		return nil, fmt.Errorf("offer %q not present in offer set", offerID)
	}
	if !offer.Supports(method) {
		return nil, fmt.Errorf("%w: offer %s allows %v, not %s",
			ErrUnsupportedPaymentMethod, offer.ID, offer.PaymentMethods, method)
	}

	status, body, err := n.transport.send(ctx, http.MethodPost,
		set.PaymentRequestURL, paymentRequest{
			OfferID:             offerID,
			PaymentMethod:       method,
			PaymentContextToken: set.PaymentContextToken,
		}, l402Auth(set.PaymentContextToken))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apiError(ErrPaymentRequestFailed, status, body)
	}

	var resp paymentRequestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPaymentInstruction, err)
	}

	instr := &PaymentInstruction{
		Method:           method,
		CheckoutURL:      resp.PaymentMethod.CheckoutURL,
		LightningInvoice: resp.PaymentMethod.LightningInvoice,
		ExpiresAt:        resp.ExpiresAt,
	}

	// Exactly one settlement artifact, and it must match the method.
	switch method {
	case PaymentMethodCreditCard:
		if instr.CheckoutURL == "" || instr.LightningInvoice != "" {
			return nil, fmt.Errorf("%w: want checkout_url only for %s", ErrMalformedPaymentInstruction, method)
		}
	case PaymentMethodLightning:
		if instr.LightningInvoice == "" || instr.CheckoutURL != "" {
			return nil, fmt.Errorf("%w: want lightning_invoice only for %s", ErrMalformedPaymentInstruction, method)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, method)
	}
	return instr, nil
}
