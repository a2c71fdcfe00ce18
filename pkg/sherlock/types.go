package sherlock

import (
	"errors"
	"fmt"
	"time"
)

// AccessToken is the short-lived bearer credential issued by login.
// It authorizes general API calls.
type AccessToken string

// RefreshToken renews an expired token pair without a full
// challenge/sign round trip.
type RefreshToken string

// PaymentContextToken scopes payment-request calls to one specific
// purchase negotiation. It is a distinct type from AccessToken so the
// two credentials cannot be swapped by accident.
type PaymentContextToken string

// PaymentMethod is a way to settle a purchase offer.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodLightning  PaymentMethod = "lightning"
)

// ContactInformation is the registrant contact attached to a purchase.
type ContactInformation struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// PurchaseIntent describes what is being bought: a domain from a prior
// search, registered to a contact. Immutable; consumed once per
// negotiation.
type PurchaseIntent struct {
	SearchID string
	Domain   string
	Contact  ContactInformation
}

func (p PurchaseIntent) validate() error {
	if p.Domain == "" {
		return errors.New("purchase intent: domain is required")
	}
	if p.SearchID == "" {
		return errors.New("purchase intent: search id is required")
	}
	// The registrar owns full contact validation; only catch the
	// obviously empty submission locally.
	if p.Contact.FirstName == "" || p.Contact.LastName == "" || p.Contact.Email == "" {
		return errors.New("purchase intent: contact name and email are required")
	}
	return nil
}

// Offer is one priced, payable unit from a payment-required response.
type Offer struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Type           string          `json:"type"`
	Amount         int64           `json:"amount"` // minor units
	Currency       string          `json:"currency"`
	PaymentMethods []PaymentMethod `json:"payment_methods"`
}

// Supports reports whether the offer can be settled with method.
func (o Offer) Supports(method PaymentMethod) bool {
	for _, m := range o.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// OfferSet is the parsed body of a payment-required purchase response.
// The context token authorizes payment-request calls for this
// negotiation only and must never be cached across negotiations.
type OfferSet struct {
	Version             string              `json:"version"`
	PaymentRequestURL   string              `json:"payment_request_url"`
	PaymentContextToken PaymentContextToken `json:"payment_context_token"`
	Offers              []Offer             `json:"offers"`
}

// Offer returns the offer with the given id.
func (s *OfferSet) Offer(id string) (Offer, bool) {
	for _, o := range s.Offers {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}

// offerForMethod returns the first offer settleable with method.
func (s *OfferSet) offerForMethod(method PaymentMethod) (Offer, bool) {
	for _, o := range s.Offers {
		if o.Supports(method) {
			return o, true
		}
	}
	return Offer{}, false
}

// PaymentInstruction tells the caller how to settle: a card checkout
// URL or a lightning invoice, depending on the chosen method.
// Settlement itself happens outside this client.
type PaymentInstruction struct {
	Method           PaymentMethod
	CheckoutURL      string
	LightningInvoice string
	ExpiresAt        time.Time
}

func (p *PaymentInstruction) String() string {
	switch p.Method {
	case PaymentMethodLightning:
		return fmt.Sprintf("pay invoice %s by %s", p.LightningInvoice, p.ExpiresAt.Format(time.RFC3339))
	default:
		return fmt.Sprintf("checkout at %s by %s", p.CheckoutURL, p.ExpiresAt.Format(time.RFC3339))
	}
}

// DomainResult is one entry of a search response.
type DomainResult struct {
	Name      string   `json:"name"`
	TLD       string   `json:"tld"`
	Tags      []string `json:"tags,omitempty"`
	Price     float64  `json:"price"`
	Currency  string   `json:"currency"`
	Available bool     `json:"available"`
}

// SearchResponse is the result of a domain search. Its ID is the
// search_id required by a subsequent purchase.
type SearchResponse struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Available   []DomainResult `json:"available"`
	Unavailable []DomainResult `json:"unavailable"`
}

// DomainInfo is one domain owned by the authenticated key.
type DomainInfo struct {
	ID          string    `json:"id"`
	DomainName  string    `json:"domain_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	AutoRenew   bool      `json:"auto_renew"`
	Locked      bool      `json:"locked"`
	Private     bool      `json:"private"`
	Nameservers []string  `json:"nameservers"`
	Status      string    `json:"status"`
}

// DNSRecord is a DNS record as returned by the registrar.
type DNSRecord struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
	TTL   int    `json:"ttl"`
}

// NewDNSRecord is a record to create, without a server-assigned id.
type NewDNSRecord struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
	TTL   int    `json:"ttl"`
}

// --- wire shapes ---

type challengeRequest struct {
	PublicKey string `json:"public_key"`
}

type challengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

type loginRequest struct {
	PublicKey string `json:"public_key"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type purchaseRequest struct {
	Domain             string             `json:"domain"`
	SearchID           string             `json:"search_id"`
	ContactInformation ContactInformation `json:"contact_information"`
}

type paymentRequest struct {
	OfferID             string              `json:"offer_id"`
	PaymentMethod       PaymentMethod       `json:"payment_method"`
	PaymentContextToken PaymentContextToken `json:"payment_context_token"`
}

type paymentRequestResponse struct {
	PaymentMethod struct {
		CheckoutURL      string `json:"checkout_url,omitempty"`
		LightningInvoice string `json:"lightning_invoice,omitempty"`
	} `json:"payment_method"`
	ExpiresAt time.Time `json:"expires_at"`
}
