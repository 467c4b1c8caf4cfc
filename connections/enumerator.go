package connections

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-xero-auth/accounting"
	"github.com/jrsteele09/go-xero-auth/identity"
	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/jrsteele09/go-xero-auth/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

type TokenSource interface {
	GetAccessToken(ctx context.Context, userID string) (token.Token, bool, error)
}

type ConnectionLister interface {
	ListConnections(ctx context.Context, t token.Token) ([]identity.Connection, error)
}

// AccountingAPI is the subset of the accounting client used per tenant.
type AccountingAPI interface {
	GetOrganisations(ctx context.Context, accessToken, tenantID string) ([]accounting.Organisation, error)
	GetInvoices(ctx context.Context, accessToken, tenantID string, statuses []string, where string) ([]accounting.Invoice, error)
}

// TenantSummary is the outstanding receivables count of one connected tenant.
type TenantSummary struct {
	TenantID            uuid.UUID
	TenantType          string
	OrganisationName    string
	OutstandingInvoices int
}

// Result of one enumeration. NoTenants is set when the user authorised no
// organisation; that is a normal outcome, not an error.
type Result struct {
	NoTenants bool
	Tenants   []TenantSummary
}

// Data maps organisation name to outstanding invoice count.
func (r Result) Data() map[string]int {
	data := make(map[string]int, len(r.Tenants))
	for _, t := range r.Tenants {
		data[t.OrganisationName] = t.OutstandingInvoices
	}
	return data
}

// Enumerator lists a user's connected tenants and summarises each one.
type Enumerator struct {
	tokens      TokenSource
	identity    ConnectionLister
	accounting  AccountingAPI
	concurrency int
}

type Option func(*Enumerator)

// WithConcurrency bounds how many tenants are queried at once.
func WithConcurrency(n int) Option {
	return func(e *Enumerator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewEnumerator(tokens TokenSource, identity ConnectionLister, accounting AccountingAPI, options ...Option) *Enumerator {
	e := &Enumerator{
		tokens:      tokens,
		identity:    identity,
		accounting:  accounting,
		concurrency: defaultConcurrency,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Enumerate reads the user's token from the store (refreshing it if needed),
// lists the tenants it is authorised for and counts each tenant's authorised
// receivable invoices. Tenants are returned in connection order.
func (e *Enumerator) Enumerate(ctx context.Context, userID string) (Result, error) {
	t, ok, err := e.tokens.GetAccessToken(ctx, userID)
	if err != nil {
		return Result{}, apperrors.Wrapf(err, "[connections Enumerate] user %s", userID)
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", apperrors.ErrNoTokenForUser, userID)
	}

	conns, err := e.identity.ListConnections(ctx, t)
	if err != nil {
		return Result{}, apperrors.Wrapf(err, "[connections Enumerate] failed to list connections")
	}
	if len(conns) == 0 {
		log.Info().Str("user_id", userID).Msg("User has no connected tenants")
		return Result{NoTenants: true}, nil
	}

	tenants := make([]TenantSummary, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, conn := range conns {
		g.Go(func() error {
			summary, err := e.summarise(gctx, t.AccessToken, conn)
			if err != nil {
				return err
			}
			tenants[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Tenants: tenants}, nil
}

func (e *Enumerator) summarise(ctx context.Context, accessToken string, conn identity.Connection) (TenantSummary, error) {
	tenantID := conn.TenantID.String()

	orgs, err := e.accounting.GetOrganisations(ctx, accessToken, tenantID)
	if err != nil {
		return TenantSummary{}, apperrors.Wrapf(err, "[connections summarise] tenant %s organisation", tenantID)
	}
	name := conn.TenantName
	if len(orgs) > 0 && orgs[0].Name != "" {
		name = orgs[0].Name
	}

	invoices, err := e.accounting.GetInvoices(ctx, accessToken, tenantID, []string{accounting.StatusAuthorised}, accounting.WhereReceivable)
	if err != nil {
		return TenantSummary{}, apperrors.Wrapf(err, "[connections summarise] tenant %s invoices", tenantID)
	}

	log.Debug().Str("tenant_id", tenantID).Int("outstanding", len(invoices)).Msg("Tenant summarised")
	return TenantSummary{
		TenantID:            conn.TenantID,
		TenantType:          conn.TenantType,
		OrganisationName:    name,
		OutstandingInvoices: len(invoices),
	}, nil
}
