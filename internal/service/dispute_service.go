package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/goroutine"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// DisputeRepo описывает зависимости DisputeService от слоя хранилища.
type DisputeRepo interface {
	Create(ctx context.Context, d *models.Dispute, openingMessage string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetActiveByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.Dispute, error)
	AssignMediator(ctx context.Context, id, mediatorID uuid.UUID, systemMessage string) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID, resolution, outcome, systemMessage string) (bool, error)
	AppendMessage(ctx context.Context, msg *models.DisputeMessage) error
	ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
}

// ThreadNotifier рассылает события треда участникам спора.
type ThreadNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// ResolveInput содержит данные решения спора.
type ResolveInput struct {
	Resolution        string
	Outcome           string
	SplitToFreelancer float64
	SplitToClient     float64
}

// DisputeService владеет машиной состояний спора
// (open → in_mediation → resolved, open → resolved для отозванных
// споров) и append-only тредом сообщений.
type DisputeService struct {
	disputes DisputeRepo
	projects MilestoneStore
	ledger   Ledger
	notifier ThreadNotifier
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeRepo, projects MilestoneStore, ledger Ledger) *DisputeService {
	return &DisputeService{disputes: disputes, projects: projects, ledger: ledger}
}

// SetNotifier подключает рассылку событий треда (websocket hub).
func (s *DisputeService) SetNotifier(n ThreadNotifier) {
	s.notifier = n
}

// OpenDispute открывает спор по этапу.
// Спорить можно только о сданном или принятом этапе: по ожидающему
// этапу спорить не о чем. Открытие атомарно проверяет отсутствие
// другого активного спора и блокирует жизненный цикл этапа.
func (s *DisputeService) OpenDispute(ctx context.Context, milestoneID, callerID uuid.UUID, role, reason string) (*models.Dispute, error) {
	if role != models.RoleClient && role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "открыть спор может только участник проекта")
	}
	if err := validation.ValidateLength("причина спора", reason, validation.MinDisputeReasonLength, validation.MaxDisputeReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	m, project, err := s.loadMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if callerID != project.ClientID && callerID != project.FreelancerID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "пользователь не участвует в проекте")
	}

	if m.Status == models.MilestoneStatusPending {
		return nil, apperror.New(apperror.ErrCodeInvalidMilestone, "по ожидающему этапу спорить не о чем")
	}

	d := &models.Dispute{
		MilestoneID:  milestoneID,
		ProjectID:    project.ID,
		OpenedBy:     callerID,
		OpenedByRole: role,
		Reason:       reason,
	}

	opening := fmt.Sprintf("Спор по этапу «%s» открыт стороной: %s.", m.Title, role)
	if err := s.disputes.Create(ctx, d, opening); err != nil {
		if errors.Is(err, repository.ErrDisputeAlreadyOpen) {
			return nil, apperror.New(apperror.ErrCodeDisputeOpen, "по этапу уже открыт спор")
		}
		return nil, err
	}

	s.notifyParticipants(project, d, "dispute_opened", d)
	return d, nil
}

// AssignMediator переводит спор open → in_mediation.
func (s *DisputeService) AssignMediator(ctx context.Context, disputeID, mediatorID uuid.UUID, role string) (*models.Dispute, error) {
	if role != models.RoleMediator {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "назначить медиацию может только медиатор")
	}

	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !valueobject.DisputeStatus(d.Status).CanTransitionTo(valueobject.DisputeStatusInMediation) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "медиация возможна только для открытого спора")
	}

	const notice = "Назначен медиатор. Решение медиации будет обязательным для обеих сторон."
	ok, err := s.disputes.AssignMediator(ctx, disputeID, mediatorID, notice)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "статус спора изменился, повторите запрос")
	}

	d, err = s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if project, perr := s.projects.GetByID(ctx, d.ProjectID); perr == nil {
		s.notifyParticipants(project, d, "dispute_updated", d)
	}
	return d, nil
}

// Resolve закрывает спор и выполняет расчёт по леджеру согласно исходу.
//
// Из медиации спор закрывает только назначенный медиатор. Открытый спор
// может закрыть и любая из сторон — так моделируется отозванный или
// самостоятельно урегулированный спор.
//
// Леджер — точка сериализации исхода: при гонке двух Resolve с разными
// исходами второй расчёт падает с ALREADY_SETTLED и спор остаётся
// закрытым первым решением. Закрытие спора снимает блокировку этапа,
// но не меняет его статус: дальнейшие approve/reject — отдельные
// явные действия.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, callerID uuid.UUID, role string, in ResolveInput) (*models.Dispute, error) {
	if _, ok := models.ValidOutcomes[in.Outcome]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный исход спора")
	}
	if err := validation.ValidateLength("решение", in.Resolution, 1, validation.MaxResolutionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "спор уже закрыт")
	}

	project, err := s.projects.GetByID(ctx, d.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeResolve(d, project, callerID, role); err != nil {
		return nil, err
	}

	if err := s.settle(ctx, d.MilestoneID, in); err != nil {
		return nil, err
	}

	final := fmt.Sprintf("Спор закрыт. Исход: %s. %s", in.Outcome, in.Resolution)
	ok, err := s.disputes.Resolve(ctx, disputeID, in.Resolution, in.Outcome, final)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "спор уже закрыт")
	}

	d, err = s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	s.notifyParticipants(project, d, "dispute_resolved", d)
	return d, nil
}

// PostMessage добавляет сообщение в тред спора.
// Сообщения медиатора записываются от имени системы. После закрытия
// спора тред закрыт для записи (политика resolve-wins).
func (s *DisputeService) PostMessage(ctx context.Context, disputeID, callerID uuid.UUID, role, content string, attachment *string) (*models.DisputeMessage, error) {
	if err := validation.ValidateLength("сообщение", content, validation.MinMessageLength, validation.MaxMessageLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if attachment != nil {
		if err := validation.ValidateLength("вложение", *attachment, 1, validation.MaxAttachmentLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, d.ProjectID)
	if err != nil {
		return nil, err
	}

	var sender string
	switch {
	case role == models.RoleMediator:
		sender = models.SenderSystem
	case callerID == project.ClientID && role == models.RoleClient:
		sender = models.SenderClient
	case callerID == project.FreelancerID && role == models.RoleFreelancer:
		sender = models.SenderFreelancer
	default:
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "пользователь не участвует в споре")
	}

	msg := &models.DisputeMessage{
		DisputeID:  disputeID,
		Sender:     sender,
		SenderID:   &callerID,
		Content:    content,
		Attachment: attachment,
	}

	if err := s.disputes.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrDisputeClosed) {
			return nil, apperror.New(apperror.ErrCodeDisputeClosed, "спор закрыт, сообщения больше не принимаются")
		}
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}

	s.notifyParticipants(project, d, "dispute_message", msg)
	return msg, nil
}

// ListMessages возвращает тред спора в порядке (timestamp, seq).
func (s *DisputeService) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	if _, err := s.getDispute(ctx, disputeID); err != nil {
		return nil, err
	}
	return s.disputes.ListMessages(ctx, disputeID)
}

// GetDispute возвращает спор по идентификатору.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return s.getDispute(ctx, disputeID)
}

// ListUserDisputes возвращает споры пользователя.
func (s *DisputeService) ListUserDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

func (s *DisputeService) getDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *DisputeService) loadMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, *models.Project, error) {
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

// authorizeResolve проверяет, кто вправе закрыть спор в текущем статусе.
func (s *DisputeService) authorizeResolve(d *models.Dispute, project *models.Project, callerID uuid.UUID, role string) error {
	if d.Status == models.DisputeStatusInMediation {
		if role != models.RoleMediator || d.MediatorID == nil || *d.MediatorID != callerID {
			return apperror.New(apperror.ErrCodeUnauthorized, "спор в медиации закрывает назначенный медиатор")
		}
		return nil
	}

	if role == models.RoleMediator {
		return nil
	}
	if callerID == project.ClientID || callerID == project.FreelancerID {
		return nil
	}
	return apperror.New(apperror.ErrCodeUnauthorized, "пользователь не участвует в споре")
}

// settle выполняет расчёт по леджеру согласно исходу спора.
func (s *DisputeService) settle(ctx context.Context, milestoneID uuid.UUID, in ResolveInput) error {
	switch in.Outcome {
	case models.OutcomeReleaseToFreelancer:
		_, err := s.ledger.Release(ctx, milestoneID)
		return err
	case models.OutcomeRefundToClient:
		_, err := s.ledger.Refund(ctx, milestoneID)
		return err
	case models.OutcomeSplit:
		_, err := s.ledger.Split(ctx, milestoneID, in.SplitToFreelancer, in.SplitToClient)
		return err
	}
	return apperror.New(apperror.ErrCodeValidation, "некорректный исход спора")
}

// notifyParticipants рассылает событие обеим сторонам и медиатору.
func (s *DisputeService) notifyParticipants(project *models.Project, d *models.Dispute, event string, data any) {
	if s.notifier == nil {
		return
	}

	recipients := []uuid.UUID{project.ClientID, project.FreelancerID}
	if d.MediatorID != nil {
		recipients = append(recipients, *d.MediatorID)
	}

	notifier := s.notifier
	goroutine.SafeGo(func() {
		for _, userID := range recipients {
			_ = notifier.BroadcastToUser(userID, event, data)
		}
	})
}
