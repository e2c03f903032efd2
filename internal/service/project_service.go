package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// ProjectStore описывает зависимости ProjectService от слоя хранилища.
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error)
	AddMilestone(ctx context.Context, m *models.Milestone) error
	DeleteMilestone(ctx context.Context, id uuid.UUID) error
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)
	CountActiveDisputes(ctx context.Context, projectID uuid.UUID) (int, error)
}

// EscrowHolder покрывает расчётные операции, нужные при создании этапа
// и чтении агрегата проекта.
type EscrowHolder interface {
	Hold(ctx context.Context, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.EscrowEntry, error)
	GetEntry(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error)
}

// ProjectOverview агрегат проекта: этапы, производный статус и сводка
// по средствам.
type ProjectOverview struct {
	Project        *models.Project    `json:"project"`
	Status         string             `json:"status"`
	Milestones     []MilestoneDetails `json:"milestones"`
	TotalAmount    float64            `json:"total_amount"`
	HeldAmount     float64            `json:"held_amount"`
	ReleasedAmount float64            `json:"released_amount"`
	RefundedAmount float64            `json:"refunded_amount"`
	ActiveDisputes int                `json:"active_disputes"`
}

// DashboardStats сводка по проектам пользователя.
type DashboardStats struct {
	TotalProjects     int     `json:"total_projects"`
	ActiveProjects    int     `json:"active_projects"`
	CompletedProjects int     `json:"completed_projects"`
	DisputedProjects  int     `json:"disputed_projects"`
	TotalHeld         float64 `json:"total_held"`
	TotalReleased     float64 `json:"total_released"`
}

// ProjectService отвечает за проекты, добавление этапов с удержанием
// средств и агрегатные чтения.
type ProjectService struct {
	projects ProjectStore
	escrow   EscrowHolder
	log      *logrus.Logger
}

// NewProjectService создаёт сервис проектов.
func NewProjectService(projects ProjectStore, escrow EscrowHolder, log *logrus.Logger) *ProjectService {
	return &ProjectService{projects: projects, escrow: escrow, log: log}
}

// CreateProject создаёт проект между клиентом и фрилансером.
func (s *ProjectService) CreateProject(ctx context.Context, clientID, freelancerID uuid.UUID, role, title, description string, deadline *time.Time) (*models.Project, error) {
	if role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "создать проект может только клиент")
	}
	if clientID == freelancerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "клиент и фрилансер должны быть разными пользователями")
	}
	if err := validation.ValidateLength("название проекта", title, validation.MinProjectTitleLength, validation.MaxProjectTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание проекта", description, 0, validation.MaxProjectDescriptionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	p := &models.Project{
		Title:        title,
		Description:  description,
		ClientID:     clientID,
		FreelancerID: freelancerID,
		DeadlineAt:   deadline,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"project_id": p.ID,
		"client_id":  clientID,
	}).Info("Проект создан")

	return p, nil
}

// AddMilestone добавляет этап и удерживает его сумму в escrow.
//
// Этап без удержанных средств не существует: если удержание не удалось
// (недостаточно средств на балансе клиента), вставка этапа
// компенсируется удалением. Позицию этапа назначает хранилище.
func (s *ProjectService) AddMilestone(ctx context.Context, projectID, callerID uuid.UUID, role, title, description string, amount float64, dueDate time.Time) (*models.Milestone, error) {
	if role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "добавить этап может только клиент")
	}

	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != callerID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "этапы добавляет клиент проекта")
	}

	if err := validation.ValidateLength("название этапа", title, validation.MinMilestoneTitleLength, validation.MaxMilestoneTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание этапа", description, 0, validation.MaxMilestoneDescriptionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount("сумма этапа", amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	m := &models.Milestone{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Amount:      amount,
		Status:      models.MilestoneStatusPending,
		DueDate:     dueDate,
	}
	if err := s.projects.AddMilestone(ctx, m); err != nil {
		return nil, err
	}

	if _, err := s.escrow.Hold(ctx, m.ID, project.ClientID, project.FreelancerID, amount); err != nil {
		if delErr := s.projects.DeleteMilestone(ctx, m.ID); delErr != nil {
			s.log.WithError(delErr).WithField("milestone_id", m.ID).
				Error("Не удалось откатить этап после неудачного удержания")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"project_id":   projectID,
		"milestone_id": m.ID,
		"amount":       amount,
	}).Info("Этап добавлен, средства удержаны")

	return m, nil
}

// GetProject возвращает агрегат проекта: этапы в порядке позиций,
// производный статус и сводку по средствам.
func (s *ProjectService) GetProject(ctx context.Context, projectID uuid.UUID) (*ProjectOverview, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	milestones, err := s.projects.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, err
	}

	activeDisputes, err := s.projects.CountActiveDisputes(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	overview := &ProjectOverview{
		Project:        project,
		Status:         DeriveProjectStatus(milestones, activeDisputes),
		Milestones:     make([]MilestoneDetails, 0, len(milestones)),
		ActiveDisputes: activeDisputes,
	}

	for i := range milestones {
		m := &milestones[i]
		overview.TotalAmount += m.Amount

		details := MilestoneDetails{Milestone: m, Overdue: m.IsOverdue(now)}
		entry, err := s.escrow.GetEntry(ctx, m.ID)
		switch {
		case err == nil:
			details.Escrow = entry
			switch entry.Status {
			case models.EscrowStatusHeld:
				overview.HeldAmount += entry.HeldAmount
			default:
				overview.ReleasedAmount += entry.ReleasedAmount
				overview.RefundedAmount += entry.RefundedAmount
			}
		case apperror.IsCode(err, apperror.ErrCodeNotHeld):
			// Этап без удержания: сводка по средствам его не учитывает.
		default:
			return nil, err
		}
		overview.Milestones = append(overview.Milestones, details)
	}

	return overview, nil
}

// ListProjects возвращает проекты, в которых пользователь участвует.
func (s *ProjectService) ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.projects.ListByParticipant(ctx, userID, limit, offset)
}

// GetDashboardStats возвращает сводку по проектам пользователя.
// Проекты читаются страницами, чтобы сводка сходилась и при числе
// проектов больше размера страницы.
func (s *ProjectService) GetDashboardStats(ctx context.Context, userID uuid.UUID) (*DashboardStats, error) {
	const pageSize = 100

	stats := &DashboardStats{}
	for offset := 0; ; offset += pageSize {
		projects, err := s.projects.ListByParticipant(ctx, userID, pageSize, offset)
		if err != nil {
			return nil, err
		}

		stats.TotalProjects += len(projects)
		for i := range projects {
			overview, err := s.GetProject(ctx, projects[i].ID)
			if err != nil {
				return nil, err
			}

			switch overview.Status {
			case models.ProjectStatusCompleted:
				stats.CompletedProjects++
			case models.ProjectStatusDisputed:
				stats.DisputedProjects++
			default:
				stats.ActiveProjects++
			}
			stats.TotalHeld += overview.HeldAmount
			stats.TotalReleased += overview.ReleasedAmount
		}

		if len(projects) < pageSize {
			return stats, nil
		}
	}
}

func (s *ProjectService) getProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

// DeriveProjectStatus вычисляет статус проекта на момент чтения.
// Активный спор по любому этапу затмевает остальное. Проект завершён,
// когда есть хотя бы один этап и все этапы приняты. Иначе проект
// активен, в том числе сразу после создания без этапов.
func DeriveProjectStatus(milestones []models.Milestone, activeDisputes int) string {
	if activeDisputes > 0 {
		return models.ProjectStatusDisputed
	}
	if len(milestones) == 0 {
		return models.ProjectStatusActive
	}
	for i := range milestones {
		if milestones[i].Status != models.MilestoneStatusApproved {
			return models.ProjectStatusActive
		}
	}
	return models.ProjectStatusCompleted
}
