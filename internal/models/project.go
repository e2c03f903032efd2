package models

import (
	"time"

	"github.com/google/uuid"
)

// Project описывает проект между клиентом и фрилансером.
// Статус проекта не хранится в базе: он выводится из статусов этапов
// и наличия активных споров (см. service.DeriveProjectStatus).
type Project struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	ClientID     uuid.UUID  `db:"client_id" json:"client_id"`
	FreelancerID uuid.UUID  `db:"freelancer_id" json:"freelancer_id"`
	DeadlineAt   *time.Time `db:"deadline_at" json:"deadline_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Milestone описывает этап проекта с оплатой через escrow.
// Порядок выполнения задаётся полем Position, а не датами.
type Milestone struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProjectID   uuid.UUID `db:"project_id" json:"project_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Amount      float64   `db:"amount" json:"amount"`
	Status      string    `db:"status" json:"status"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	Position    int       `db:"position" json:"position"`
	Submission  *string   `db:"submission" json:"submission,omitempty"`
	Feedback    *string   `db:"feedback" json:"feedback,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsOverdue возвращает true, если срок этапа истёк.
// Просрочка — вычисляемый предикат: этап в статусе pending или rejected,
// чей срок строго раньше текущего момента. Сданные и принятые этапы
// просроченными не считаются независимо от даты.
func (m *Milestone) IsOverdue(now time.Time) bool {
	if m.Status != MilestoneStatusPending && m.Status != MilestoneStatusRejected {
		return false
	}
	return m.DueDate.Before(now)
}

// IsTerminal возвращает true, если этап находится в терминальном статусе.
func (m *Milestone) IsTerminal() bool {
	return m.Status == MilestoneStatusApproved
}
