package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
)

var (
	ErrProjectNotFound         = errors.New("project not found")
	ErrMilestoneNotFound       = errors.New("milestone not found")
	ErrMilestoneLocked         = errors.New("milestone has an active dispute")
	ErrMilestoneStatusConflict = errors.New("milestone status changed concurrently")
)

// ProjectRepository отвечает за таблицы projects и milestones.
// Переходы статусов этапа выполняются условным UPDATE с проверкой
// исходного статуса: проигравший гонку конкурентный переход получает
// false вместо второй мутации.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository создаёт экземпляр репозитория.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create создаёт проект.
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO projects (title, description, client_id, freelancer_id, deadline_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		p.Title, p.Description, p.ClientID, p.FreelancerID, p.DeadlineAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("project repository: create %w", err)
	}
	return nil
}

// GetByID возвращает проект по идентификатору.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := r.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project repository: get by id %w", err)
	}
	return &p, nil
}

// ListByParticipant возвращает проекты, где пользователь является
// клиентом или фрилансером.
func (r *ProjectRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.SelectContext(ctx, &projects, `
		SELECT * FROM projects
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return projects, err
}

// AddMilestone создаёт этап с очередной позицией внутри проекта.
func (r *ProjectRepository) AddMilestone(ctx context.Context, m *models.Milestone) error {
	query := `
		INSERT INTO milestones (project_id, title, description, amount, status, due_date, position)
		VALUES ($1, $2, $3, $4, 'pending',
			$5,
			COALESCE((SELECT MAX(position) + 1 FROM milestones WHERE project_id = $1), 1))
		RETURNING id, status, position, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		m.ProjectID, m.Title, m.Description, m.Amount, m.DueDate,
	).Scan(&m.ID, &m.Status, &m.Position, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return fmt.Errorf("project repository: add milestone %w", err)
	}
	return nil
}

// DeleteMilestone удаляет этап. Используется только как компенсация,
// когда создание этапа не удалось довести до удержания escrow.
func (r *ProjectRepository) DeleteMilestone(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM milestones WHERE id = $1`, id); err != nil {
		return fmt.Errorf("project repository: delete milestone %w", err)
	}
	return nil
}

// GetMilestoneByID возвращает этап по идентификатору.
func (r *ProjectRepository) GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var m models.Milestone
	err := r.db.GetContext(ctx, &m, `SELECT * FROM milestones WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project repository: get milestone %w", err)
	}
	return &m, nil
}

// ListMilestones возвращает этапы проекта в порядке выполнения.
func (r *ProjectRepository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := r.db.SelectContext(ctx, &milestones, `
		SELECT * FROM milestones WHERE project_id = $1 ORDER BY position ASC
	`, projectID)
	return milestones, err
}

// UpdateMilestoneStatus выполняет переход статуса этапа условным UPDATE.
// Проверка исходного статуса и отсутствия активного спора входят в сам
// UPDATE: спор, открытый между чтением этапа и переходом, не даст строке
// совпасть. Возвращает false, если строка не совпала — статус сменил
// конкурентный вызов либо этап заблокирован спором.
func (r *ProjectRepository) UpdateMilestoneStatus(ctx context.Context, id uuid.UUID, from, to string, submission, feedback *string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones
		SET status = $3,
			submission = COALESCE($4, submission),
			feedback = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
			AND NOT EXISTS (SELECT 1 FROM disputes WHERE milestone_id = $1 AND status <> 'resolved')
	`, id, from, to, submission, feedback)
	if err != nil {
		return false, fmt.Errorf("project repository: update milestone status %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("project repository: update milestone status %w", err)
	}
	return affected == 1, nil
}

// ApproveMilestone принимает сданный этап и выплачивает escrow в одной
// транзакции. Блокировка строки этапа — точка сериализации: под ней
// перепроверяются статус и отсутствие активного спора, затем
// выполняются release и переход submitted → approved. Любая ошибка
// откатывает и выплату, и переход вместе.
func (r *ProjectRepository) ApproveMilestone(ctx context.Context, id uuid.UUID, feedback *string) (*models.Milestone, *models.EscrowEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var m models.Milestone
	err = tx.GetContext(ctx, &m, `SELECT * FROM milestones WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("project repository: approve lock milestone %w", err)
	}

	var locked bool
	err = tx.GetContext(ctx, &locked, `
		SELECT EXISTS (SELECT 1 FROM disputes WHERE milestone_id = $1 AND status <> 'resolved')
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("project repository: approve dispute check %w", err)
	}
	if locked {
		return nil, nil, ErrMilestoneLocked
	}

	if m.Status != models.MilestoneStatusSubmitted {
		return nil, nil, ErrMilestoneStatusConflict
	}

	// Уже выплаченный escrow не мешает принять этап; возврат клиенту
	// (итог спора) делает приёмку невозможной.
	entry, err := releaseEntryTx(ctx, tx, id)
	if err != nil && !errors.Is(err, ErrEscrowAlreadyReleased) {
		return nil, nil, err
	}

	err = tx.GetContext(ctx, &m, `
		UPDATE milestones SET status = $2, feedback = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, models.MilestoneStatusApproved, feedback)
	if err != nil {
		return nil, nil, fmt.Errorf("project repository: approve update %w", err)
	}

	return &m, entry, tx.Commit()
}

// CountActiveDisputes возвращает количество незакрытых споров по проекту.
func (r *ProjectRepository) CountActiveDisputes(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM disputes WHERE project_id = $1 AND status <> 'resolved'
	`, projectID)
	if err != nil {
		return 0, fmt.Errorf("project repository: count active disputes %w", err)
	}
	return count, nil
}
