package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// MilestoneStore описывает зависимости жизненного цикла этапов от
// слоя хранилища.
type MilestoneStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	UpdateMilestoneStatus(ctx context.Context, id uuid.UUID, from, to string, submission, feedback *string) (bool, error)
	ApproveMilestone(ctx context.Context, id uuid.UUID, feedback *string) (*models.Milestone, *models.EscrowEntry, error)
}

// DisputeLookup позволяет проверить наличие активного спора по этапу.
type DisputeLookup interface {
	GetActiveByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.Dispute, error)
}

// Ledger описывает расчётные операции леджера, нужные машинам состояний.
type Ledger interface {
	Release(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error)
	Refund(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error)
	Split(ctx context.Context, milestoneID uuid.UUID, toFreelancer, toClient float64) (*models.EscrowEntry, error)
	GetEntry(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error)
}

// MilestoneDetails объединяет этап с его escrow записью и признаком
// просрочки. Просрочка вычисляется на момент чтения и не хранится.
type MilestoneDetails struct {
	Milestone *models.Milestone   `json:"milestone"`
	Escrow    *models.EscrowEntry `json:"escrow,omitempty"`
	Overdue   bool                `json:"overdue"`
}

// MilestoneService владеет машиной состояний этапа:
// pending → submitted → approved | rejected, rejected → submitted.
// Пока по этапу существует незакрытый спор, все переходы заблокированы.
type MilestoneService struct {
	projects MilestoneStore
	disputes DisputeLookup
	ledger   Ledger
}

// NewMilestoneService создаёт сервис жизненного цикла этапов.
func NewMilestoneService(projects MilestoneStore, disputes DisputeLookup, ledger Ledger) *MilestoneService {
	return &MilestoneService{projects: projects, disputes: disputes, ledger: ledger}
}

// Submit сдаёт этап на проверку: pending|rejected → submitted.
// Повторная сдача после отклонения разрешена; отзыв предыдущей проверки
// при этом очищается.
func (s *MilestoneService) Submit(ctx context.Context, milestoneID, callerID uuid.UUID, role, submission string) (*models.Milestone, error) {
	if role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "сдавать этап может только фрилансер")
	}
	if err := validation.ValidateNonEmpty("ссылка на результат", submission); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("ссылка на результат", submission, 1, validation.MaxSubmissionRefLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	m, project, err := s.loadMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if project.FreelancerID != callerID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "этап принадлежит другому исполнителю")
	}

	if err := s.ensureUnlocked(ctx, milestoneID); err != nil {
		return nil, err
	}

	if !valueobject.MilestoneStatus(m.Status).CanTransitionTo(valueobject.MilestoneStatusSubmitted) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "сдать можно только ожидающий или отклонённый этап")
	}

	ok, err := s.projects.UpdateMilestoneStatus(ctx, milestoneID, m.Status, models.MilestoneStatusSubmitted, &submission, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionConflict(ctx, milestoneID)
	}

	return s.projects.GetMilestoneByID(ctx, milestoneID)
}

// Approve принимает сданный этап и выплачивает escrow фрилансеру.
//
// Выплата и переход submitted → approved выполняются хранилищем в одной
// транзакции под блокировкой строки этапа: проигравший гонку Approve
// получает InvalidTransition без каких-либо следов в леджере, а выиграть
// может ровно один вызов.
func (s *MilestoneService) Approve(ctx context.Context, milestoneID, callerID uuid.UUID, role string, feedback *string) (*models.Milestone, error) {
	if role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "принимать этап может только клиент")
	}
	if feedback != nil {
		if err := validation.ValidateLength("отзыв", *feedback, 0, validation.MaxFeedbackLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	m, project, err := s.loadMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != callerID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "этап принадлежит другому клиенту")
	}

	if err := s.ensureUnlocked(ctx, milestoneID); err != nil {
		return nil, err
	}

	if !valueobject.MilestoneStatus(m.Status).CanTransitionTo(valueobject.MilestoneStatusApproved) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "принять можно только сданный этап")
	}

	m, _, err = s.projects.ApproveMilestone(ctx, milestoneID, feedback)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMilestoneLocked):
			return nil, apperror.New(apperror.ErrCodeMilestoneLocked, "этап заблокирован открытым спором")
		case errors.Is(err, repository.ErrMilestoneStatusConflict):
			return nil, apperror.New(apperror.ErrCodeInvalidTransition, "статус этапа изменился, повторите запрос")
		case errors.Is(err, repository.ErrEscrowNotFound):
			return nil, apperror.New(apperror.ErrCodeNotHeld, "по этапу нет удержанных средств")
		case errors.Is(err, repository.ErrEscrowAlreadyRefunded):
			return nil, apperror.New(apperror.ErrCodeAlreadySettled, "средства по этапу уже возвращены клиенту")
		}
		return nil, err
	}

	return m, nil
}

// Reject отклоняет сданный этап. Отзыв обязателен: он показывается
// исполнителю как причина отклонения.
func (s *MilestoneService) Reject(ctx context.Context, milestoneID, callerID uuid.UUID, role, feedback string) (*models.Milestone, error) {
	if role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "отклонять этап может только клиент")
	}
	if err := validation.ValidateNonEmpty("отзыв", feedback); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("отзыв", feedback, 1, validation.MaxFeedbackLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	m, project, err := s.loadMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != callerID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "этап принадлежит другому клиенту")
	}

	if err := s.ensureUnlocked(ctx, milestoneID); err != nil {
		return nil, err
	}

	if !valueobject.MilestoneStatus(m.Status).CanTransitionTo(valueobject.MilestoneStatusRejected) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "отклонить можно только сданный этап")
	}

	ok, err := s.projects.UpdateMilestoneStatus(ctx, milestoneID, models.MilestoneStatusSubmitted, models.MilestoneStatusRejected, nil, &feedback)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionConflict(ctx, milestoneID)
	}

	return s.projects.GetMilestoneByID(ctx, milestoneID)
}

// GetMilestone возвращает этап с escrow записью и признаком просрочки.
func (s *MilestoneService) GetMilestone(ctx context.Context, milestoneID uuid.UUID) (*MilestoneDetails, error) {
	m, err := s.projects.GetMilestoneByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return nil, apperror.ErrMilestoneNotFound
		}
		return nil, err
	}

	details := &MilestoneDetails{
		Milestone: m,
		Overdue:   m.IsOverdue(time.Now()),
	}

	entry, err := s.ledger.GetEntry(ctx, milestoneID)
	switch {
	case err == nil:
		details.Escrow = entry
	case apperror.IsCode(err, apperror.ErrCodeNotHeld):
		// Записи нет только у этапов, создание которых не довели до
		// удержания; это не ошибка чтения.
	default:
		return nil, err
	}

	return details, nil
}

// loadMilestone загружает этап вместе с проектом.
func (s *MilestoneService) loadMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, *models.Project, error) {
	m, err := s.projects.GetMilestoneByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return nil, nil, apperror.ErrMilestoneNotFound
		}
		return nil, nil, err
	}

	project, err := s.projects.GetByID(ctx, m.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, nil, apperror.ErrProjectNotFound
		}
		return nil, nil, err
	}

	return m, project, nil
}

// transitionConflict объясняет несовпавший условный UPDATE: строка не
// совпала либо из-за конкурентной смены статуса, либо из-за спора,
// открытого после первой проверки.
func (s *MilestoneService) transitionConflict(ctx context.Context, milestoneID uuid.UUID) error {
	if err := s.ensureUnlocked(ctx, milestoneID); err != nil {
		return err
	}
	return apperror.New(apperror.ErrCodeInvalidTransition, "статус этапа изменился, повторите запрос")
}

// ensureUnlocked возвращает MilestoneLocked, если по этапу есть
// незакрытый спор.
func (s *MilestoneService) ensureUnlocked(ctx context.Context, milestoneID uuid.UUID) error {
	_, err := s.disputes.GetActiveByMilestoneID(ctx, milestoneID)
	if err == nil {
		return apperror.New(apperror.ErrCodeMilestoneLocked, "этап заблокирован открытым спором")
	}
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil
	}
	return err
}
