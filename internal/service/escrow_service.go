package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
)

// EscrowRepository описывает зависимости EscrowService от слоя хранилища.
type EscrowRepository interface {
	Hold(ctx context.Context, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.EscrowEntry, error)
	Release(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error)
	Refund(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error)
	Split(ctx context.Context, milestoneID uuid.UUID, toFreelancer, toClient float64) (*models.EscrowEntry, error)
	GetByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// EscrowService реализует контракт леджера: Hold / Release / Refund / Split.
//
// Release и Refund идемпотентны относительно самих себя: повтор того же
// расчёта — no-op с успешным результатом. Перекрёстный вызов после
// терминального статуса (release после refund и наоборот) — ошибка
// ALREADY_SETTLED.
type EscrowService struct {
	repo EscrowRepository
}

// NewEscrowService создаёт сервис леджера.
func NewEscrowService(repo EscrowRepository) *EscrowService {
	return &EscrowService{repo: repo}
}

// Hold удерживает сумму этапа. Повторное удержание по тому же этапу
// запрещено.
func (s *EscrowService) Hold(ctx context.Context, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.EscrowEntry, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма удержания должна быть положительной")
	}

	entry, err := s.repo.Hold(ctx, milestoneID, clientID, freelancerID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEscrowAlreadyHeld):
			return nil, apperror.New(apperror.ErrCodeAlreadyHeld, "средства по этапу уже удержаны")
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.New(apperror.ErrCodeValidation, "недостаточно средств на балансе")
		}
		return nil, err
	}
	return entry, nil
}

// Release освобождает полную сумму фрилансеру.
func (s *EscrowService) Release(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	entry, err := s.repo.Release(ctx, milestoneID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEscrowNotFound):
			return nil, apperror.New(apperror.ErrCodeNotHeld, "по этапу нет удержанных средств")
		case errors.Is(err, repository.ErrEscrowAlreadyReleased):
			// Идемпотентность: повторный release ничего не меняет.
			return entry, nil
		case errors.Is(err, repository.ErrEscrowAlreadyRefunded):
			return nil, apperror.New(apperror.ErrCodeAlreadySettled, "средства по этапу уже возвращены клиенту")
		}
		return nil, err
	}
	return entry, nil
}

// Refund возвращает полную сумму клиенту.
func (s *EscrowService) Refund(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	entry, err := s.repo.Refund(ctx, milestoneID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEscrowNotFound):
			return nil, apperror.New(apperror.ErrCodeNotHeld, "по этапу нет удержанных средств")
		case errors.Is(err, repository.ErrEscrowAlreadyRefunded):
			// Идемпотентность: повторный refund ничего не меняет.
			return entry, nil
		case errors.Is(err, repository.ErrEscrowAlreadyReleased):
			return nil, apperror.New(apperror.ErrCodeAlreadySettled, "средства по этапу уже выплачены фрилансеру")
		}
		return nil, err
	}
	return entry, nil
}

// Split делит удержанную сумму по решению спора.
// Сумма частей обязана совпадать с удержанной суммой.
func (s *EscrowService) Split(ctx context.Context, milestoneID uuid.UUID, toFreelancer, toClient float64) (*models.EscrowEntry, error) {
	if toFreelancer <= 0 || toClient <= 0 {
		return nil, apperror.New(apperror.ErrCodeAmountMismatch, "обе части split должны быть положительными")
	}

	entry, err := s.repo.Split(ctx, milestoneID, toFreelancer, toClient)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEscrowNotFound):
			return nil, apperror.New(apperror.ErrCodeNotHeld, "по этапу нет удержанных средств")
		case errors.Is(err, repository.ErrEscrowAmountMismatch):
			return nil, apperror.New(apperror.ErrCodeAmountMismatch, "сумма частей не совпадает с удержанной суммой")
		case errors.Is(err, repository.ErrEscrowAlreadyReleased), errors.Is(err, repository.ErrEscrowAlreadyRefunded):
			return nil, apperror.New(apperror.ErrCodeAlreadySettled, "средства по этапу уже рассчитаны")
		}
		return nil, err
	}
	return entry, nil
}

// GetEntry возвращает escrow запись по этапу.
func (s *EscrowService) GetEntry(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	entry, err := s.repo.GetByMilestoneID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotHeld, "по этапу нет удержанных средств")
		}
		return nil, err
	}
	return entry, nil
}

// GetBalance возвращает баланс пользователя.
func (s *EscrowService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Deposit пополняет баланс.
func (s *EscrowService) Deposit(ctx context.Context, userID uuid.UUID, amount float64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	return s.repo.Deposit(ctx, userID, amount, "Пополнение баланса")
}

// ListTransactions возвращает журнал транзакций пользователя.
func (s *EscrowService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}
