package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute описывает спор по конкретному этапу проекта.
// На этап одновременно может существовать не более одного
// незакрытого спора; пока спор не закрыт, жизненный цикл этапа
// заблокирован. Закрытые споры хранятся вечно как аудиторский след.
type Dispute struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	MilestoneID  uuid.UUID  `db:"milestone_id" json:"milestone_id"`
	ProjectID    uuid.UUID  `db:"project_id" json:"project_id"`
	OpenedBy     uuid.UUID  `db:"opened_by" json:"opened_by"`
	OpenedByRole string     `db:"opened_by_role" json:"opened_by_role"`
	Reason       string     `db:"reason" json:"reason"`
	Status       string     `db:"status" json:"status"`
	MediatorID   *uuid.UUID `db:"mediator_id" json:"mediator_id,omitempty"`
	Resolution   *string    `db:"resolution" json:"resolution,omitempty"`
	Outcome      *string    `db:"outcome" json:"outcome,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsActive возвращает true, если спор ещё не закрыт.
func (d *Dispute) IsActive() bool {
	return d.Status != DisputeStatusResolved
}

// DisputeMessage описывает сообщение в треде спора.
// Тред append-only: созданное сообщение неизменяемо. Полный порядок
// задаётся парой (created_at, seq); seq монотонно растёт внутри спора
// и разрешает коллизии одинаковых временных меток.
type DisputeMessage struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	DisputeID  uuid.UUID  `db:"dispute_id" json:"dispute_id"`
	Sender     string     `db:"sender" json:"sender"`
	SenderID   *uuid.UUID `db:"sender_id" json:"sender_id,omitempty"`
	Content    string     `db:"content" json:"content"`
	Attachment *string    `db:"attachment" json:"attachment,omitempty"`
	Seq        int64      `db:"seq" json:"seq"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
