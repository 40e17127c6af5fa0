package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
)

// PostingState tracks a movement through the posting pipeline
type PostingState string

const (
	PostingStateReceived        PostingState = "RECEIVED"
	PostingStatePriced          PostingState = "PRICED"
	PostingStateAccountResolved PostingState = "ACCOUNT_RESOLVED"
	PostingStatePosted          PostingState = "POSTED"
	PostingStateFailed          PostingState = "FAILED"
)

// String returns the string representation
func (s PostingState) String() string {
	return string(s)
}

// PostingDeadLetter records a movement whose posting failed. The physical
// stock ledger is never rolled back on posting failure; the dead letter is
// the operator's handle to retry, and reconciliation surfaces the variance
// in the meantime.
type PostingDeadLetter struct {
	shared.BaseEntity
	CompanyID  uuid.UUID    `gorm:"type:uuid;not null;index"`
	MovementID uuid.UUID    `gorm:"type:uuid;not null;index"`
	EventType  string       `gorm:"type:varchar(50);not null"`
	FailedAt   PostingState `gorm:"type:varchar(30);not null"`
	Reason     string       `gorm:"type:text;not null"`
	RetryCount int          `gorm:"not null;default:0"`
	Resolved   bool         `gorm:"not null;default:false"`
	ResolvedAt *time.Time   `gorm:"type:timestamp"`
}

// TableName returns the table name for GORM
func (PostingDeadLetter) TableName() string {
	return "posting_dead_letters"
}

// NewPostingDeadLetter records a failed posting attempt
func NewPostingDeadLetter(companyID, movementID uuid.UUID, eventType string, failedAt PostingState, reason string) *PostingDeadLetter {
	return &PostingDeadLetter{
		BaseEntity: shared.NewBaseEntity(),
		CompanyID:  companyID,
		MovementID: movementID,
		EventType:  eventType,
		FailedAt:   failedAt,
		Reason:     reason,
	}
}

// MarkResolved closes the dead letter after a successful retry
func (d *PostingDeadLetter) MarkResolved() {
	now := time.Now()
	d.Resolved = true
	d.ResolvedAt = &now
	d.UpdatedAt = now
}

// RecordRetry increments the retry counter
func (d *PostingDeadLetter) RecordRetry() {
	d.RetryCount++
	d.UpdatedAt = time.Now()
}
