package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
)

const (
	apiPath = "/api.xro/2.0"

	// StatusAuthorised is an approved invoice that is awaiting payment.
	StatusAuthorised = "AUTHORISED"
	// WhereReceivable restricts invoices to sales (accounts receivable).
	WhereReceivable = `Type == "ACCREC"`
)

// Client is a minimal Xero accounting API client. Every call is made on
// behalf of one tenant with the caller's access token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at apiURL (e.g. https://api.xero.com).
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(apiURL, "/") + apiPath,
		httpClient: httpClient,
	}
}

type Organisation struct {
	OrganisationID   uuid.UUID `json:"OrganisationID"`
	Name             string    `json:"Name"`
	LegalName        string    `json:"LegalName"`
	OrganisationType string    `json:"OrganisationType"`
	BaseCurrency     string    `json:"BaseCurrency"`
	CountryCode      string    `json:"CountryCode"`
}

type Contact struct {
	ContactID uuid.UUID `json:"ContactID"`
	Name      string    `json:"Name"`
}

type Invoice struct {
	InvoiceID     uuid.UUID `json:"InvoiceID"`
	InvoiceNumber string    `json:"InvoiceNumber"`
	Type          string    `json:"Type"`
	Status        string    `json:"Status"`
	Contact       Contact   `json:"Contact"`
	CurrencyCode  string    `json:"CurrencyCode"`
	Total         float64   `json:"Total"`
	AmountDue     float64   `json:"AmountDue"`
}

func (c *Client) GetOrganisations(ctx context.Context, accessToken, tenantID string) ([]Organisation, error) {
	var resp struct {
		Organisations []Organisation `json:"Organisations"`
	}
	if err := c.get(ctx, accessToken, tenantID, "/Organisation", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Organisations, nil
}

// GetInvoices lists the tenant's invoices, filtered by status and an
// optional API where clause.
func (c *Client) GetInvoices(ctx context.Context, accessToken, tenantID string, statuses []string, where string) ([]Invoice, error) {
	query := url.Values{}
	if len(statuses) > 0 {
		query.Set("Statuses", strings.Join(statuses, ","))
	}
	if where != "" {
		query.Set("where", where)
	}

	var resp struct {
		Invoices []Invoice `json:"Invoices"`
	}
	if err := c.get(ctx, accessToken, tenantID, "/Invoices", query, &resp); err != nil {
		return nil, err
	}
	return resp.Invoices, nil
}

func (c *Client) get(ctx context.Context, accessToken, tenantID, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("[accounting %s] failed to build request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("xero-tenant-id", tenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s status %d for tenant %s", apperrors.ErrUnauthorized, path, resp.StatusCode, tenantID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s status %d: %s", apperrors.ErrUnexpected, path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %w", apperrors.ErrUnexpected, path, err)
	}
	return nil
}
