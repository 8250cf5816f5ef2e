package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	// Sport restricts opportunity listings; audit listings ignore it.
	Sport Sport
	// Event restricts audit listings to one event name.
	Event string
}

// OpportunityStore persists detected opportunities.
type OpportunityStore interface {
	InsertBatch(ctx context.Context, opps []ArbitrageOpportunity) error
	ListRecent(ctx context.Context, opts ListOpts) ([]ArbitrageOpportunity, error)
	GetByID(ctx context.Context, id string) (ArbitrageOpportunity, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of detection cycles.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
