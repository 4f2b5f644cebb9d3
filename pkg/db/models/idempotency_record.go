package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/soumil-kumar17/MailMaven/pkg/types"
)

// IdempotencyRecord stores the response produced for a (user, key) pair.
// Response columns stay nil until the request that claimed the key completes.
type IdempotencyRecord struct {
	UserID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	IdempotencyKey     string            `gorm:"type:text;primaryKey"`
	ResponseStatusCode *int16            `gorm:"type:smallint"`
	ResponseHeaders    types.HeaderPairs `gorm:"type:header_pair[]"`
	ResponseBody       []byte            `gorm:"type:bytea"`
	CreatedAt          time.Time         `gorm:"type:timestamptz;not null;default:now()"`
}

func (IdempotencyRecord) TableName() string { return "idempotency" }

// Pending reports whether the response has not been saved yet.
func (r IdempotencyRecord) Pending() bool {
	return r.ResponseStatusCode == nil
}
