package models

import "time"

// FileStatusHistory records one approval transition on a file. The actor name
// and role are stamped at decision time so the trail survives later account
// changes.
type FileStatusHistory struct {
	ID         int64     `db:"id" json:"id"`
	FileID     int64     `db:"file_id" json:"file_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	FromStage  string    `db:"from_stage" json:"from_stage"`
	ToStage    string    `db:"to_stage" json:"to_stage"`
	ActorID    int64     `db:"actor_id" json:"actor_id"`
	ActorName  string    `db:"actor_name" json:"actor_name"`
	ActorRole  string    `db:"actor_role" json:"actor_role"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	Filename string `db:"filename" json:"filename,omitempty"`
}
