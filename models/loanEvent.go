package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoanEvent is the transactional outbox row for ledger changes. It is written inside the
// ledger transaction and published after commit by the outbox dispatcher.
type LoanEvent struct {
	ID               int           `gorm:"primary_key" json:"id"`
	EventId          string        `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	Type             LoanEventType `gorm:"size:30;not null" json:"type"`
	LoanId           int           `gorm:"not null;index" json:"loan_id"`
	StudentId        string        `gorm:"size:50;not null" json:"student_id"`
	Payload          []byte        `gorm:"type:json" json:"payload"`
	CorrelationId    string        `gorm:"size:64" json:"correlation_id"`
	PublishStatus    string        `gorm:"size:20;not null;index:idx_loan_event_claim,priority:1" json:"publish_status"`
	PublishAttempts  int           `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time    `gorm:"index:idx_loan_event_claim,priority:2" json:"next_attempt_at"`
	LockedBy         *string       `gorm:"size:64" json:"locked_by"`
	LockedAt         *time.Time    `json:"locked_at"`
	LastPublishError *string       `gorm:"type:text" json:"last_publish_error"`
	PubSubMessageId  *string       `gorm:"size:255" json:"pub_sub_message_id"`
	OccurredAt       time.Time     `gorm:"not null" json:"occurred_at"`
	PublishedAt      *time.Time    `json:"published_at"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// LoanEventPayload is the published message body.
type LoanEventPayload struct {
	EventId        string          `json:"event_id"`
	Type           LoanEventType   `json:"type"`
	LoanId         int             `json:"loan_id"`
	StudentId      string          `json:"student_id"`
	BookId         string          `json:"book_id"`
	BookDepartment Department      `json:"book_department"`
	Status         LoanStatus      `json:"status"`
	FineAmount     decimal.Decimal `json:"fine_amount"`
	DueDate        time.Time       `json:"due_date"`
	ReturnDate     *time.Time      `json:"return_date,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Actor          string          `json:"actor"`
	CorrelationId  string          `json:"correlation_id,omitempty"`
}

// Attributes are the Pub/Sub message attributes, usable for subscription filters.
func (e *LoanEvent) Attributes() map[string]string {
	return map[string]string{
		"event_id":   e.EventId,
		"event_type": string(e.Type),
		"student_id": e.StudentId,
	}
}

// eventActor names who caused the change: the admin, the desk client, the student, or the
// scheduler when the request carries none of them.
func eventActor(ctx context.Context) string {
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
		if name, ok := utils.GetAdminUsernameFromContext(ctx); ok && name != "" {
			return "admin:" + name
		}
	}
	if subject, ok := utils.GetDeskSubjectFromContext(ctx); ok && subject != "" {
		return "desk:" + subject
	}
	if regNo, ok := utils.GetRegNoFromContext(ctx); ok && regNo != "" {
		return "student:" + regNo
	}
	return "system"
}

func enqueueLoanEvent(ctx context.Context, tx *gorm.DB, typ LoanEventType, loan *LoanTransaction, at time.Time) error {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	payload := LoanEventPayload{
		EventId:        uuid.NewString(),
		Type:           typ,
		LoanId:         loan.ID,
		StudentId:      loan.StudentId,
		BookId:         loan.BookId,
		BookDepartment: loan.BookDepartment,
		Status:         loan.Status,
		FineAmount:     loan.FineAmount,
		DueDate:        loan.DueDate,
		ReturnDate:     loan.ReturnDate,
		OccurredAt:     at,
		Actor:          eventActor(ctx),
		CorrelationId:  correlationId,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := LoanEvent{
		EventId:       payload.EventId,
		Type:          typ,
		LoanId:        loan.ID,
		StudentId:     loan.StudentId,
		Payload:       data,
		CorrelationId: correlationId,
		PublishStatus: OutboxPublishStatusPending,
		OccurredAt:    at,
	}
	return storeError("enqueue loan event", tx.Create(&event).Error)
}
