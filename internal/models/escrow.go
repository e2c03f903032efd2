package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы escrow
const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// Типы транзакций
const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeEscrowHold    = "escrow_hold"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeEscrowRefund  = "escrow_refund"
)

// Статусы транзакций
const (
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// EscrowEntry представляет средства, удержанные под конкретный этап.
// Запись живёт отдельно от этапа: бухгалтерия release/refund переживает
// любые изменения жизненного цикла этапа.
type EscrowEntry struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	MilestoneID    uuid.UUID  `db:"milestone_id" json:"milestone_id"`
	ClientID       uuid.UUID  `db:"client_id" json:"client_id"`
	FreelancerID   uuid.UUID  `db:"freelancer_id" json:"freelancer_id"`
	HeldAmount     float64    `db:"held_amount" json:"held_amount"`
	ReleasedAmount float64    `db:"released_amount" json:"released_amount"`
	RefundedAmount float64    `db:"refunded_amount" json:"refunded_amount"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	SettledAt      *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}

// UserBalance представляет внутренний баланс пользователя.
type UserBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Available float64   `db:"available" json:"available"`
	Frozen    float64   `db:"frozen" json:"frozen"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction представляет запись в журнале внутреннего леджера.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	MilestoneID *uuid.UUID `db:"milestone_id" json:"milestone_id,omitempty"`
	Type        string     `db:"type" json:"type"`
	Amount      float64    `db:"amount" json:"amount"`
	Status      string     `db:"status" json:"status"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
