// Package sherlock is the Go SDK for the Sherlock domain registrar.
//
// It covers the registrar's full API: Ed25519 challenge/response
// login, the payment-required domain purchase negotiation, domain
// search, and DNS record management.
//
// # Getting a client
//
// The identity is an Ed25519 key pair (see pkg/keys). The quickest
// path loads everything from configuration, generating a key on first
// use:
//
//	c, err := sherlock.NewFromConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or wire the key explicitly:
//
//	key, _ := keys.LoadOrGenerate(os.ExpandEnv("$HOME/.sherlock/key"))
//	c, err := sherlock.New(key, sherlock.WithLogger(logger))
//
// Authentication is automatic: the first call needing a bearer token
// runs the challenge/sign/login handshake and caches the result.
// Concurrent calls share a single handshake, since challenges are
// single-use.
//
// # Buying a domain
//
// Purchases are payment-gated. PurchaseDomain negotiates the offer
// and returns a PaymentInstruction; settling it (opening the checkout
// URL, paying the invoice) is up to the caller:
//
//	res, _ := c.Search(ctx, "example.com")
//	instr, err := c.PurchaseDomain(ctx, sherlock.PurchaseIntent{
//	    SearchID: res.ID,
//	    Domain:   "example.com",
//	    Contact:  contact,
//	}, sherlock.PaymentMethodCreditCard)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("complete the purchase at", instr.CheckoutURL)
//
// To inspect offers before committing, use RequestOffer and
// RequestPayment separately.
//
// # DNS records
//
//	domains, _ := c.Domains(ctx)
//	records, _ := c.DNSRecords(ctx, domains[0].ID)
//	c.CreateDNSRecord(ctx, domains[0].ID, sherlock.NewDNSRecord{
//	    Type: "A", Name: "www", Value: "203.0.113.7", TTL: 3600,
//	})
package sherlock
