package models

import "time"

// BatchSnapshot is the persisted view of a running batch job. It exists
// for crash diagnosis only: the live registry in memory is authoritative
// and stale snapshots are purged at startup.
type BatchSnapshot struct {
	TaskID    string    `bson:"task_id"`
	UserID    int64     `bson:"user_id"`
	Link      string    `bson:"link"`
	StartID   int32     `bson:"start_id"`
	Count     int       `bson:"count"`
	Processed int       `bson:"processed"`
	Succeeded int       `bson:"succeeded"`
	UpdatedAt time.Time `bson:"updated_at"`
}
