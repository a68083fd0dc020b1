package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	svcerrors "github.com/metervision/meter-reader/internal/errors"
	"github.com/metervision/meter-reader/supabase/client"
)

// Repository persists and queries meter readings. Every operation forwards
// the caller's bearer token so the store's own row-level authorization
// applies; the repository adds no authorization of its own.
type Repository struct {
	client *client.Client
}

// NewRepository creates a repository on top of the Supabase client.
func NewRepository(c *client.Client) *Repository {
	return &Repository{client: c}
}

// Save inserts one reading row scoped to the token's user and returns the
// generated row id. Store errors pass through verbatim.
func (r *Repository) Save(ctx context.Context, token string, row *ReadingRow) (string, error) {
	if row == nil {
		return "", fmt.Errorf("reading row cannot be nil")
	}
	if row.UserID == "" {
		return "", fmt.Errorf("user_id cannot be empty")
	}

	resp, err := r.client.WithToken(token).From(TableReadings).ExecuteInsert(ctx, row)
	if err != nil {
		return "", svcerrors.Persistence(err.Error(), err)
	}
	if err := resp.Error(); err != nil {
		return "", svcerrors.Persistence(err.Error(), err)
	}

	var created []ReadingRow
	if err := resp.JSON(&created); err != nil {
		return "", svcerrors.Persistence(fmt.Sprintf("decode insert response: %v", err), err)
	}
	if len(created) == 0 {
		return "", svcerrors.Persistence("insert returned no representation", nil)
	}
	return created[0].ID, nil
}

// List returns the user's readings ordered by creation time descending,
// optionally restricted to one meter and paginated by the filter.
func (r *Repository) List(ctx context.Context, token, userID string, f Filter) ([]ReadingRow, error) {
	f = f.Normalize()

	q := r.client.WithToken(token).From(TableReadings).
		Select("*").
		Eq("user_id", userID).
		Order("created_at", false).
		Limit(f.Limit).
		Offset(f.Offset)
	if f.MeterID != "" {
		q = q.Eq("meter_id", f.MeterID)
	}

	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, svcerrors.Persistence(err.Error(), err)
	}
	if err := resp.Error(); err != nil {
		return nil, svcerrors.Persistence(err.Error(), err)
	}

	rows := []ReadingRow{}
	if err := resp.JSON(&rows); err != nil {
		return nil, svcerrors.Persistence(fmt.Sprintf("decode list response: %v", err), err)
	}
	return rows, nil
}

// Stats returns the user's aggregate statistics row. The aggregation itself
// is owned by the store's meter_statistics view; this code only reads it.
func (r *Repository) Stats(ctx context.Context, token string) (json.RawMessage, error) {
	resp, err := r.client.WithToken(token).From(ViewStats).Select("*").Execute(ctx)
	if err != nil {
		return nil, svcerrors.Persistence(err.Error(), err)
	}
	if err := resp.Error(); err != nil {
		return nil, svcerrors.Persistence(err.Error(), err)
	}

	var rows []json.RawMessage
	if err := resp.JSON(&rows); err != nil {
		return nil, svcerrors.Persistence(fmt.Sprintf("decode stats response: %v", err), err)
	}
	if len(rows) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return rows[0], nil
}
