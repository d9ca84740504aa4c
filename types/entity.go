package types

import "time"

// Entity carries the timestamps shared by every persisted storefront record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Age returns how long ago the record was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// IsStale reports whether the record hasn't been updated within d.
// Pending orders older than the gateway's order lifetime are stale.
func (e Entity) IsStale(d time.Duration) bool {
	return time.Since(e.UpdatedAt) > d
}
