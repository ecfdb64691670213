// Package settlement talks to the external settlement oracle: the
// system of record that reports whether a bank transfer actually
// occurred.  The oracle is a collaborator, not part of the core;
// matching a reported transaction against a payment intent (exact
// amount, reference containment) is the payment service's job, so the
// client here only searches narratives and returns what the oracle
// reports.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Transaction is one settled bank transfer as reported by the oracle.
type Transaction struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Narrative   string    `json:"narrative"`
	PostedAt    time.Time `json:"posted_at"`
}

// Oracle searches settled transactions.  SearchNarrative returns every
// transaction whose narrative contains the given fragment; an empty
// slice means nothing matched yet.  Implementations must treat
// transport failures as errors so the caller can retry on its own
// cadence.
type Oracle interface {
	SearchNarrative(ctx context.Context, fragment string) ([]Transaction, error)
}

// HTTPOracle queries a settlement API over HTTP.  The expected
// endpoint is GET {base}/v1/transactions?narrative=<fragment>
// returning a JSON array of transactions.
type HTTPOracle struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPOracle builds an HTTPOracle for the given base URL and API
// key.  A short timeout keeps a slow oracle from stalling the poller.
func NewHTTPOracle(baseURL, apiKey string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SearchNarrative implements Oracle.
func (o *HTTPOracle) SearchNarrative(ctx context.Context, fragment string) ([]Transaction, error) {
	u := fmt.Sprintf("%s/v1/transactions?narrative=%s", o.baseURL, url.QueryEscape(fragment))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("settlement oracle returned status %d", resp.StatusCode)
	}
	var txns []Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txns); err != nil {
		return nil, fmt.Errorf("decode oracle response: %w", err)
	}
	return txns, nil
}
