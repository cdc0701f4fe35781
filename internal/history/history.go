package history

import (
	"context"
	"time"
)

// Routing change source values.
const (
	// SourceReply marks a change observed in a console reply, whether
	// elicited by this service or caused at the console surface.
	SourceReply = "reply"

	// SourceToggle marks a change this service wrote.
	SourceToggle = "toggle"
)

// Entry is a single recorded routing-block change.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// Block is the routing block index (0..3).
	Block int `json:"block"`

	// Value is the routing enum value the block changed to.
	Value int `json:"value"`

	// Source identifies how the change was observed.
	Source string `json:"source"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves routing change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordRoutingChange appends one routing-block change.
	RecordRoutingChange(ctx context.Context, block, value int, source string) error

	// Recent returns the most recent changes, newest first. limit is
	// clamped to implementation bounds.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
