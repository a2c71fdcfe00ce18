package sherlock_test

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/flintlabsai/sherlock-go/pkg/keys"
	"github.com/flintlabsai/sherlock-go/pkg/sherlock"
)

// fakeRegistrar is an httptest stand-in for the Sherlock API. It
// issues real challenges, verifies Ed25519 signatures, enforces
// single-use challenges, and serves a configurable purchase flow.
type fakeRegistrar struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	challenges map[string]bool // challenge value -> consumed

	challengeCalls int
	loginCalls     int
	refreshCalls   int
	purchaseCalls  int
	paymentCalls   int

	accessToken    string
	refreshToken   string
	lastSearchAuth string

	// behavior toggles
	failChallenge        bool // 500 on /auth/challenge
	rejectLogin          bool // 401 on /auth/login regardless of signature
	rejectRefresh        bool // 401 on /auth/refresh
	challengeDelay       time.Duration
	purchase401Remaining int // respond 401 to this many purchase calls first

	// full handler overrides; nil means default behavior
	purchaseHandler func(w http.ResponseWriter, r *http.Request)
	paymentHandler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeRegistrar(t *testing.T) *fakeRegistrar {
	t.Helper()
	f := &fakeRegistrar{t: t, challenges: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/auth/challenge", f.handleChallenge)
	mux.HandleFunc("/api/v0/auth/login", f.handleLogin)
	mux.HandleFunc("/api/v0/auth/refresh", f.handleRefresh)
	mux.HandleFunc("/api/v0/domains/purchase", f.handlePurchase)
	mux.HandleFunc("/api/v0/payments/request", f.handlePayment)
	mux.HandleFunc("/api/v0/domains/search", f.handleSearch)
	mux.HandleFunc("/api/v0/domains/domains", f.handleDomains)
	mux.HandleFunc("/api/v0/domains/dom_1/dns/records", f.handleDNSRecords)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// client builds an SDK client pointed at the stub.
func (f *fakeRegistrar) client(t *testing.T, key *keys.KeyPair, opts ...sherlock.Option) *sherlock.Client {
	t.Helper()
	c, err := sherlock.New(key, append([]sherlock.Option{sherlock.WithBaseURL(f.srv.URL)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func (f *fakeRegistrar) handleChallenge(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.challengeCalls++
	fail := f.failChallenge
	delay := f.challengeDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		http.Error(w, `{"detail":"challenge store unavailable"}`, http.StatusInternalServerError)
		return
	}

	var req struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PublicKey == "" {
		http.Error(w, `{"detail":"public_key required"}`, http.StatusBadRequest)
		return
	}

	challenge := "chal_" + uuid.NewString()
	f.mu.Lock()
	f.challenges[challenge] = false
	f.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]any{
		"challenge":  challenge,
		"expires_at": time.Now().Add(2 * time.Minute).Format(time.RFC3339),
	})
}

func (f *fakeRegistrar) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.loginCalls++
	reject := f.rejectLogin
	f.mu.Unlock()

	if reject {
		http.Error(w, `{"detail":"invalid signature"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		PublicKey string `json:"public_key"`
		Challenge string `json:"challenge"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
		return
	}

	// Challenges are single-use: a replayed login must be rejected
	// even with a valid signature.
	f.mu.Lock()
	consumed, known := f.challenges[req.Challenge]
	if known && !consumed {
		f.challenges[req.Challenge] = true
	}
	f.mu.Unlock()
	if !known || consumed {
		http.Error(w, `{"detail":"unknown or consumed challenge"}`, http.StatusUnauthorized)
		return
	}

	sig, err := hex.DecodeString(req.Signature)
	if err != nil || !keys.Verify(req.PublicKey, []byte(req.Challenge), sig) {
		http.Error(w, `{"detail":"invalid signature"}`, http.StatusUnauthorized)
		return
	}

	f.issueTokens(w)
}

func (f *fakeRegistrar) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.refreshCalls++
	reject := f.rejectRefresh
	current := f.refreshToken
	f.mu.Unlock()

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
		return
	}
	if reject || req.Refresh == "" || req.Refresh != current {
		http.Error(w, `{"detail":"invalid refresh token"}`, http.StatusUnauthorized)
		return
	}
	f.issueTokens(w)
}

func (f *fakeRegistrar) issueTokens(w http.ResponseWriter) {
	access := mintJWT(f.t, 15*time.Minute)
	refresh := "ref_" + uuid.NewString()
	f.mu.Lock()
	f.accessToken = access
	f.refreshToken = refresh
	f.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]string{"access": access, "refresh": refresh})
}

func (f *fakeRegistrar) handlePurchase(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.purchaseCalls++
	stale := f.purchase401Remaining > 0
	if stale {
		f.purchase401Remaining--
	}
	override := f.purchaseHandler
	token := f.accessToken
	f.mu.Unlock()

	if override != nil {
		override(w, r)
		return
	}
	if stale || r.Header.Get("Authorization") != "Bearer "+token || token == "" {
		http.Error(w, `{"detail":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(map[string]any{
		"version":               "0.2.1",
		"payment_request_url":   f.srv.URL + "/api/v0/payments/request",
		"payment_context_token": "pctx_1",
		"offers": []map[string]any{{
			"id":              "off_1",
			"title":           "example.com",
			"description":     "1 year registration",
			"type":            "one-time",
			"amount":          500,
			"currency":        "USD",
			"payment_methods": []string{"credit_card"},
		}},
	})
}

func (f *fakeRegistrar) handlePayment(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paymentCalls++
	override := f.paymentHandler
	f.mu.Unlock()

	if override != nil {
		override(w, r)
		return
	}
	if r.Header.Get("Authorization") != "L402 pctx_1" {
		http.Error(w, `{"detail":"payment context token required"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		OfferID             string `json:"offer_id"`
		PaymentMethod       string `json:"payment_method"`
		PaymentContextToken string `json:"payment_context_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OfferID != "off_1" || req.PaymentContextToken != "pctx_1" {
		http.Error(w, `{"detail":"bad payment request"}`, http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"payment_method": map[string]string{
			"checkout_url": "https://pay.example.com/checkout/abc",
		},
		"expires_at": time.Now().Add(30 * time.Minute).Format(time.RFC3339),
	})
}

func (f *fakeRegistrar) handleSearch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastSearchAuth = r.Header.Get("Authorization")
	f.mu.Unlock()

	if r.URL.Query().Get("query") == "" {
		http.Error(w, `{"detail":"Invalid search query"}`, http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":         "srch_1",
		"created_at": time.Now().Format(time.RFC3339),
		"available": []map[string]any{{
			"name": "example.com", "tld": "com", "price": 5.0,
			"currency": "USD", "available": true,
		}},
		"unavailable": []map[string]any{},
	})
}

func (f *fakeRegistrar) handleDomains(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	token := f.accessToken
	f.mu.Unlock()
	if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, `{"detail":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	json.NewEncoder(w).Encode([]map[string]any{{
		"id":          "dom_1",
		"domain_name": "example.com",
		"created_at":  time.Now().Format(time.RFC3339),
		"expires_at":  time.Now().AddDate(1, 0, 0).Format(time.RFC3339),
		"auto_renew":  true,
		"nameservers": []string{"ns1.sherlockdomains.com"},
		"status":      "active",
	}})
}

func (f *fakeRegistrar) handleDNSRecords(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	token := f.accessToken
	f.mu.Unlock()
	if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, `{"detail":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"records": f.dnsRecords()})
	case http.MethodPost:
		var req struct {
			Records []map[string]any `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Records) == 0 {
			http.Error(w, `{"detail":"records required"}`, http.StatusBadRequest)
			return
		}
		recs := f.dnsRecords()
		for _, rec := range req.Records {
			rec["id"] = "rec_new_" + uuid.NewString()[:8]
			recs = append(recs, rec)
		}
		json.NewEncoder(w).Encode(map[string]any{"records": recs})
	case http.MethodPatch:
		var req struct {
			Records []map[string]any `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"records": req.Records})
	case http.MethodDelete:
		var req struct {
			RecordIDs []string `json:"record_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"domain":          "example.com",
			"deleted_records": req.RecordIDs,
		})
	default:
		http.Error(w, `{"detail":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (f *fakeRegistrar) dnsRecords() []map[string]any {
	return []map[string]any{{
		"id": "rec_1", "type": "A", "name": "@", "value": "203.0.113.7", "ttl": 3600,
	}}
}

func (f *fakeRegistrar) counts() (challenge, login, refresh, purchase, payment int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challengeCalls, f.loginCalls, f.refreshCalls, f.purchaseCalls, f.paymentCalls
}

// mintJWT builds a signed HS256 token so the client's expiry-hint
// parsing sees realistic claims. The jti keeps tokens unique across
// logins within the same second.
func mintJWT(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "agent",
		"jti": uuid.NewString(),
		"exp": time.Now().Add(ttl).Unix(),
	})
	signed, err := tok.SignedString([]byte("stub-secret"))
	if err != nil {
		t.Fatalf("sign stub token: %v", err)
	}
	return signed
}

func newTestKey(t *testing.T) *keys.KeyPair {
	t.Helper()
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return kp
}

func testIntent() sherlock.PurchaseIntent {
	return sherlock.PurchaseIntent{
		SearchID: "srch_1",
		Domain:   "example.com",
		Contact: sherlock.ContactInformation{
			FirstName:  "Ada",
			LastName:   "Lovelace",
			Email:      "ada@example.com",
			Address:    "12 Analytical Way",
			City:       "London",
			State:      "LDN",
			Country:    "GB",
			PostalCode: "N1 9GU",
		},
	}
}
