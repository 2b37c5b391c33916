package domain

import "time"

// Checkpoint is the last block a watcher finished for one key.
type Checkpoint struct {
	Key       string    `json:"key"`
	Block     uint64    `json:"block"`
	UpdatedAt time.Time `json:"updatedAt"`
}
