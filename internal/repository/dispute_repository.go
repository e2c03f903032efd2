package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-backend/internal/models"
)

var (
	ErrDisputeNotFound    = errors.New("dispute not found")
	ErrDisputeAlreadyOpen = errors.New("active dispute already exists for this milestone")
	ErrDisputeClosed      = errors.New("dispute is resolved and closed for input")
)

// uniqueViolation код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

// DisputeRepository отвечает за таблицы disputes и dispute_messages.
//
// Единственность активного спора на этап обеспечивается частичным
// уникальным индексом (milestone_id WHERE status <> 'resolved'):
// конкурентная проверка «нет ли уже спора» и создание — одна атомарная
// операция на стороне базы.
//
// Для сообщений действует политика resolve-wins: добавление берёт
// блокировку строки спора и перепроверяет статус, поэтому сообщение,
// проигравшее гонку закрытию спора, отклоняется.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт экземпляр репозитория.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create создаёт спор вместе с первым системным сообщением.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute, openingMessage string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO disputes (milestone_id, project_id, opened_by, opened_by_role, reason, status)
		VALUES ($1, $2, $3, $4, $5, 'open')
		RETURNING id, status, created_at, updated_at
	`
	err = tx.QueryRowxContext(
		ctx, query,
		d.MilestoneID, d.ProjectID, d.OpenedBy, d.OpenedByRole, d.Reason,
	).Scan(&d.ID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDisputeAlreadyOpen
		}
		return fmt.Errorf("dispute repository: create %w", err)
	}

	if err := appendMessageTx(ctx, tx, &models.DisputeMessage{
		DisputeID: d.ID,
		Sender:    models.SenderSystem,
		Content:   openingMessage,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &d, nil
}

// GetActiveByMilestoneID возвращает незакрытый спор по этапу.
func (r *DisputeRepository) GetActiveByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes WHERE milestone_id = $1 AND status <> 'resolved'
	`, milestoneID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get active by milestone %w", err)
	}
	return &d, nil
}

// ListByUser возвращает споры по проектам, где пользователь участвует,
// либо где он назначен медиатором.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT d.* FROM disputes d
		JOIN projects p ON d.project_id = p.id
		WHERE p.client_id = $1 OR p.freelancer_id = $1 OR d.mediator_id = $1
		ORDER BY d.created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return disputes, err
}

// AssignMediator переводит спор open → in_mediation условным UPDATE и
// добавляет системное сообщение о начале медиации.
func (r *DisputeRepository) AssignMediator(ctx context.Context, id, mediatorID uuid.UUID, systemMessage string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE disputes SET status = 'in_mediation', mediator_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'open'
	`, id, mediatorID)
	if err != nil {
		return false, fmt.Errorf("dispute repository: assign mediator %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected != 1 {
		return false, nil
	}

	if err := appendMessageTx(ctx, tx, &models.DisputeMessage{
		DisputeID: id,
		Sender:    models.SenderSystem,
		Content:   systemMessage,
	}); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// Resolve закрывает спор условным UPDATE (из любого незакрытого статуса)
// и добавляет финальное системное сообщение. Финальное сообщение — это
// последняя допустимая запись в треде.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, resolution, outcome, systemMessage string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE disputes
		SET status = 'resolved', resolution = $2, outcome = $3, updated_at = NOW(), resolved_at = NOW()
		WHERE id = $1 AND status <> 'resolved'
	`, id, resolution, outcome)
	if err != nil {
		return false, fmt.Errorf("dispute repository: resolve %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected != 1 {
		return false, nil
	}

	if err := appendMessageTx(ctx, tx, &models.DisputeMessage{
		DisputeID: id,
		Sender:    models.SenderSystem,
		Content:   systemMessage,
	}); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// AppendMessage добавляет сообщение в тред спора.
// Блокировка строки спора сериализует назначение seq и гарантирует,
// что после закрытия спора сообщения не принимаются (resolve-wins).
func (r *DisputeRepository) AppendMessage(ctx context.Context, msg *models.DisputeMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status, `SELECT status FROM disputes WHERE id = $1 FOR UPDATE`, msg.DisputeID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDisputeNotFound
	}
	if err != nil {
		return fmt.Errorf("dispute repository: append message %w", err)
	}
	if status == models.DisputeStatusResolved {
		return ErrDisputeClosed
	}

	if err := appendMessageTx(ctx, tx, msg); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE disputes SET updated_at = NOW() WHERE id = $1`, msg.DisputeID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListMessages возвращает тред спора в возрастающем порядке
// (created_at, seq). Тред целиком виден всем сторонам и медиатору.
func (r *DisputeRepository) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	var messages []models.DisputeMessage
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM dispute_messages
		WHERE dispute_id = $1
		ORDER BY created_at ASC, seq ASC
	`, disputeID)
	return messages, err
}

// appendMessageTx вставляет сообщение с очередным seq внутри транзакции.
// Вызывающий обязан держать блокировку строки спора либо создавать спор
// в этой же транзакции.
func appendMessageTx(ctx context.Context, tx *sqlx.Tx, msg *models.DisputeMessage) error {
	query := `
		INSERT INTO dispute_messages (dispute_id, sender, sender_id, content, attachment, seq)
		VALUES ($1, $2, $3, $4, $5,
			COALESCE((SELECT MAX(seq) + 1 FROM dispute_messages WHERE dispute_id = $1), 1))
		RETURNING id, seq, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		msg.DisputeID, msg.Sender, msg.SenderID, msg.Content, msg.Attachment,
	).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: insert message %w", err)
	}
	return nil
}
