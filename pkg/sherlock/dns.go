package sherlock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// recordsEnvelope wraps DNS record payloads on the wire.
type recordsEnvelope[T any] struct {
	Records []T `json:"records"`
}

// DNSRecords lists the DNS records of a domain.
func (c *Client) DNSRecords(ctx context.Context, domainID string) ([]DNSRecord, error) {
	body, err := c.getAuthed(ctx, "/api/v0/domains/"+domainID+"/dns/records")
	if err != nil {
		return nil, err
	}
	var resp recordsEnvelope[DNSRecord]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode dns records: %w", err)
	}
	return resp.Records, nil
}

// CreateDNSRecord adds a record to a domain and returns the domain's
// records as stored, including the new record's assigned id.
func (c *Client) CreateDNSRecord(ctx context.Context, domainID string, rec NewDNSRecord) ([]DNSRecord, error) {
	return c.sendRecords(ctx, http.MethodPost, domainID, recordsEnvelope[NewDNSRecord]{Records: []NewDNSRecord{rec}})
}

// UpdateDNSRecords updates existing records, matched by id.
func (c *Client) UpdateDNSRecords(ctx context.Context, domainID string, recs []DNSRecord) ([]DNSRecord, error) {
	return c.sendRecords(ctx, http.MethodPatch, domainID, recordsEnvelope[DNSRecord]{Records: recs})
}

// DeleteDNSRecords removes records by id and returns the ids the
// registrar actually deleted.
func (c *Client) DeleteDNSRecords(ctx context.Context, domainID string, recordIDs []string) ([]string, error) {
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	payload := struct {
		RecordIDs []string `json:"record_ids"`
	}{RecordIDs: recordIDs}

	status, body, err := c.transport.send(ctx, http.MethodDelete,
		c.baseURL+"/api/v0/domains/"+domainID+"/dns/records", payload, bearerAuth(tok))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apiError(ErrRequestFailed, status, body)
	}

	var resp struct {
		Domain         string   `json:"domain"`
		DeletedRecords []string `json:"deleted_records"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode delete response: %w", err)
	}
	return resp.DeletedRecords, nil
}

func (c *Client) sendRecords(ctx context.Context, method, domainID string, payload any) ([]DNSRecord, error) {
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	status, body, err := c.transport.send(ctx, method,
		c.baseURL+"/api/v0/domains/"+domainID+"/dns/records", payload, bearerAuth(tok))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apiError(ErrRequestFailed, status, body)
	}
	var resp recordsEnvelope[DNSRecord]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode dns records: %w", err)
	}
	return resp.Records, nil
}
