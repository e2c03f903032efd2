package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
)

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) Hold(ctx context.Context, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.EscrowEntry, error) {
	args := m.Called(ctx, milestoneID, clientID, freelancerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowRepo) Release(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	args := m.Called(ctx, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowRepo) Refund(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	args := m.Called(ctx, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowRepo) Split(ctx context.Context, milestoneID uuid.UUID, toFreelancer, toClient float64) (*models.EscrowEntry, error) {
	args := m.Called(ctx, milestoneID, toFreelancer, toClient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowRepo) GetByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	args := m.Called(ctx, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowRepo) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBalance), args.Error(1)
}

func (m *mockEscrowRepo) Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockEscrowRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func TestEscrowService_Hold_Success(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID, clientID, freelancerID := uuid.New(), uuid.New(), uuid.New()

	expected := &models.EscrowEntry{MilestoneID: milestoneID, HeldAmount: 500, Status: models.EscrowStatusHeld}
	repo.On("Hold", ctx, milestoneID, clientID, freelancerID, float64(500)).Return(expected, nil)

	entry, err := svc.Hold(ctx, milestoneID, clientID, freelancerID, 500)
	assert.NoError(t, err)
	assert.Equal(t, expected, entry)
	repo.AssertExpectations(t)
}

func TestEscrowService_Hold_InvalidAmount(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)

	_, err := svc.Hold(context.Background(), uuid.New(), uuid.New(), uuid.New(), 0)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Hold(context.Background(), uuid.New(), uuid.New(), uuid.New(), -100)
	assert.Error(t, err)
}

func TestEscrowService_Hold_AlreadyHeld(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	repo.On("Hold", ctx, milestoneID, mock.Anything, mock.Anything, float64(100)).
		Return(nil, repository.ErrEscrowAlreadyHeld)

	_, err := svc.Hold(ctx, milestoneID, uuid.New(), uuid.New(), 100)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeAlreadyHeld))
}

func TestEscrowService_Release_IdempotentReplay(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	settled := &models.EscrowEntry{MilestoneID: milestoneID, HeldAmount: 500, ReleasedAmount: 500, Status: models.EscrowStatusReleased}
	repo.On("Release", ctx, milestoneID).Return(settled, repository.ErrEscrowAlreadyReleased)

	// Повтор release — успех без повторной выплаты.
	entry, err := svc.Release(ctx, milestoneID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, entry.Status)
}

func TestEscrowService_Release_AfterRefund(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	refunded := &models.EscrowEntry{MilestoneID: milestoneID, Status: models.EscrowStatusRefunded}
	repo.On("Release", ctx, milestoneID).Return(refunded, repository.ErrEscrowAlreadyRefunded)

	_, err := svc.Release(ctx, milestoneID)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeAlreadySettled))
}

func TestEscrowService_Release_NotHeld(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	repo.On("Release", ctx, milestoneID).Return(nil, repository.ErrEscrowNotFound)

	_, err := svc.Release(ctx, milestoneID)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeNotHeld))
}

func TestEscrowService_Refund_IdempotentReplay(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	settled := &models.EscrowEntry{MilestoneID: milestoneID, RefundedAmount: 500, Status: models.EscrowStatusRefunded}
	repo.On("Refund", ctx, milestoneID).Return(settled, repository.ErrEscrowAlreadyRefunded)

	entry, err := svc.Refund(ctx, milestoneID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, entry.Status)
}

func TestEscrowService_Refund_AfterRelease(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	released := &models.EscrowEntry{MilestoneID: milestoneID, Status: models.EscrowStatusReleased}
	repo.On("Refund", ctx, milestoneID).Return(released, repository.ErrEscrowAlreadyReleased)

	_, err := svc.Refund(ctx, milestoneID)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeAlreadySettled))
}

func TestEscrowService_Split_Success(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	expected := &models.EscrowEntry{
		MilestoneID:    milestoneID,
		HeldAmount:     1000,
		ReleasedAmount: 600,
		RefundedAmount: 400,
		Status:         models.EscrowStatusReleased,
	}
	repo.On("Split", ctx, milestoneID, float64(600), float64(400)).Return(expected, nil)

	entry, err := svc.Split(ctx, milestoneID, 600, 400)
	assert.NoError(t, err)
	assert.Equal(t, float64(600), entry.ReleasedAmount)
	assert.Equal(t, float64(400), entry.RefundedAmount)
}

func TestEscrowService_Split_AmountMismatch(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	repo.On("Split", ctx, milestoneID, float64(600), float64(300)).
		Return(nil, repository.ErrEscrowAmountMismatch)

	_, err := svc.Split(ctx, milestoneID, 600, 300)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeAmountMismatch))
}

func TestEscrowService_Split_NonPositiveParts(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)

	_, err := svc.Split(context.Background(), uuid.New(), 0, 1000)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeAmountMismatch))

	_, err = svc.Split(context.Background(), uuid.New(), 1000, -1)
	assert.Error(t, err)
}

func TestEscrowService_Deposit(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	userID := uuid.New()

	expected := &models.Transaction{ID: uuid.New(), Amount: 1000, Type: models.TransactionTypeDeposit}
	repo.On("Deposit", ctx, userID, float64(1000), "Пополнение баланса").Return(expected, nil)

	tx, err := svc.Deposit(ctx, userID, 1000)
	assert.NoError(t, err)
	assert.Equal(t, expected, tx)

	_, err = svc.Deposit(ctx, userID, 0)
	assert.Error(t, err)
}

func TestEscrowService_ListTransactions_LimitClamp(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListTransactions", ctx, userID, 20, 0).Return([]models.Transaction{}, nil)

	_, err := svc.ListTransactions(ctx, userID, -5, -3)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
