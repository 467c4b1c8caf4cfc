package identity

import (
	"time"

	"github.com/google/uuid"
)

// Connection is one tenant (organisation or practice) a token is authorised for.
type Connection struct {
	ID             uuid.UUID
	AuthEventID    uuid.UUID
	TenantID       uuid.UUID
	TenantType     string // e.g. ORGANISATION, PRACTICE
	TenantName     string
	CreatedDateUTC time.Time
	UpdatedDateUTC time.Time
}

// connectionJSON is the /connections wire shape. Dates carry no zone and are UTC.
type connectionJSON struct {
	ID             uuid.UUID `json:"id"`
	AuthEventID    uuid.UUID `json:"authEventId"`
	TenantID       uuid.UUID `json:"tenantId"`
	TenantType     string    `json:"tenantType"`
	TenantName     string    `json:"tenantName"`
	CreatedDateUTC string    `json:"createdDateUtc"`
	UpdatedDateUTC string    `json:"updatedDateUtc"`
}

var connectionDateLayouts = []string{
	"2006-01-02T15:04:05.9999999",
	time.RFC3339Nano,
}

func (c connectionJSON) toConnection() Connection {
	return Connection{
		ID:             c.ID,
		AuthEventID:    c.AuthEventID,
		TenantID:       c.TenantID,
		TenantType:     c.TenantType,
		TenantName:     c.TenantName,
		CreatedDateUTC: parseConnectionDate(c.CreatedDateUTC),
		UpdatedDateUTC: parseConnectionDate(c.UpdatedDateUTC),
	}
}

func parseConnectionDate(s string) time.Time {
	for _, layout := range connectionDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
