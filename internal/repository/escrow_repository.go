package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/models"
)

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrEscrowNotFound        = errors.New("escrow entry not found")
	ErrEscrowAlreadyHeld     = errors.New("escrow entry already exists for this milestone")
	ErrEscrowAlreadyReleased = errors.New("escrow entry already released")
	ErrEscrowAlreadyRefunded = errors.New("escrow entry already refunded")
	ErrEscrowAmountMismatch  = errors.New("split amounts do not sum to held amount")
)

// EscrowRepository ведёт леджер удержанных средств по этапам.
// Все составные операции выполняются в одной транзакции с блокировкой
// строки escrow (FOR UPDATE): это точка сериализации для конкурентных
// расчётов по одному этапу.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт экземпляр репозитория.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Hold создаёт escrow запись и замораживает средства клиента.
func (r *EscrowRepository) Hold(ctx context.Context, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.EscrowEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Повторный Hold по тому же этапу запрещён.
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM escrow_entries WHERE milestone_id = $1)`, milestoneID); err != nil {
		return nil, fmt.Errorf("escrow repository: hold check %w", err)
	}
	if exists {
		return nil, ErrEscrowAlreadyHeld
	}

	// Проверяем баланс клиента под блокировкой.
	var balance models.UserBalance
	err = tx.GetContext(ctx, &balance, `SELECT user_id, available, frozen FROM user_balances WHERE user_id = $1 FOR UPDATE`, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	if balance.Available < amount {
		return nil, ErrInsufficientFunds
	}

	// Замораживаем средства
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available - $2, frozen = frozen + $2, updated_at = NOW()
		WHERE user_id = $1
	`, clientID, amount)
	if err != nil {
		return nil, err
	}

	var entry models.EscrowEntry
	err = tx.GetContext(ctx, &entry, `
		INSERT INTO escrow_entries (milestone_id, client_id, freelancer_id, held_amount, status)
		VALUES ($1, $2, $3, $4, 'held')
		RETURNING id, milestone_id, client_id, freelancer_id, held_amount, released_amount, refunded_amount, status, created_at, settled_at
	`, milestoneID, clientID, freelancerID, amount)
	if err != nil {
		return nil, err
	}

	// Журнал заморозки
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_hold', $3, 'completed', 'Заморозка средств под этап', NOW())
	`, clientID, milestoneID, amount)
	if err != nil {
		return nil, err
	}

	return &entry, tx.Commit()
}

// Release освобождает полную удержанную сумму в пользу фрилансера.
// Запись должна быть в статусе held; released и refunded различаются
// sentinel ошибками, чтобы сервис мог реализовать идемпотентность.
func (r *EscrowRepository) Release(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := releaseEntryTx(ctx, tx, milestoneID)
	if err != nil {
		return entry, err
	}
	return entry, tx.Commit()
}

// releaseEntryTx выполняет release внутри уже открытой транзакции.
// Вызывающий фиксирует или откатывает транзакцию сам; это позволяет
// объединять выплату с переходом статуса этапа в один атомарный шаг.
func releaseEntryTx(ctx context.Context, tx *sqlx.Tx, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	entry, err := lockEscrowEntry(ctx, tx, milestoneID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EscrowStatusHeld {
		return entry, settledError(entry.Status)
	}

	// Снимаем заморозку у клиента
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, entry.ClientID, entry.HeldAmount)
	if err != nil {
		return nil, err
	}

	// Начисляем фрилансеру
	if err := creditBalance(ctx, tx, entry.FreelancerID, entry.HeldAmount); err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE escrow_entries SET status = 'released', released_amount = held_amount, settled_at = $2 WHERE id = $1
	`, entry.ID, now)
	if err != nil {
		return nil, err
	}
	entry.Status = models.EscrowStatusReleased
	entry.ReleasedAmount = entry.HeldAmount
	entry.SettledAt = &now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_release', $3, 'completed', 'Выплата за принятый этап', NOW())
	`, entry.FreelancerID, milestoneID, entry.HeldAmount)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Refund возвращает полную удержанную сумму клиенту.
func (r *EscrowRepository) Refund(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := lockEscrowEntry(ctx, tx, milestoneID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EscrowStatusHeld {
		return entry, settledError(entry.Status)
	}

	// Размораживаем средства обратно клиенту
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available + $2, frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, entry.ClientID, entry.HeldAmount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE escrow_entries SET status = 'refunded', refunded_amount = held_amount, settled_at = $2 WHERE id = $1
	`, entry.ID, now)
	if err != nil {
		return nil, err
	}
	entry.Status = models.EscrowStatusRefunded
	entry.RefundedAmount = entry.HeldAmount
	entry.SettledAt = &now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_refund', $3, 'completed', 'Возврат средств по этапу', NOW())
	`, entry.ClientID, milestoneID, entry.HeldAmount)
	if err != nil {
		return nil, err
	}

	return entry, tx.Commit()
}

// Split делит удержанную сумму между фрилансером и клиентом.
// Обе выплаты выполняются в одной транзакции; сумма частей обязана
// совпадать с удержанной суммой.
func (r *EscrowRepository) Split(ctx context.Context, milestoneID uuid.UUID, toFreelancer, toClient float64) (*models.EscrowEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := lockEscrowEntry(ctx, tx, milestoneID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EscrowStatusHeld {
		return entry, settledError(entry.Status)
	}
	if _, err := valueobject.NewSplitAmounts(toFreelancer, toClient, entry.HeldAmount); err != nil {
		return nil, ErrEscrowAmountMismatch
	}

	// Снимаем заморозку у клиента и возвращаем ему его часть
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available + $2, frozen = frozen - $3, updated_at = NOW()
		WHERE user_id = $1
	`, entry.ClientID, toClient, entry.HeldAmount)
	if err != nil {
		return nil, err
	}

	// Часть фрилансера
	if err := creditBalance(ctx, tx, entry.FreelancerID, toFreelancer); err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE escrow_entries SET status = 'released', released_amount = $2, refunded_amount = $3, settled_at = $4 WHERE id = $1
	`, entry.ID, toFreelancer, toClient, now)
	if err != nil {
		return nil, err
	}
	entry.Status = models.EscrowStatusReleased
	entry.ReleasedAmount = toFreelancer
	entry.RefundedAmount = toClient
	entry.SettledAt = &now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_release', $3, 'completed', 'Частичная выплата по решению спора', NOW())
	`, entry.FreelancerID, milestoneID, toFreelancer)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_refund', $3, 'completed', 'Частичный возврат по решению спора', NOW())
	`, entry.ClientID, milestoneID, toClient)
	if err != nil {
		return nil, err
	}

	return entry, tx.Commit()
}

// GetByMilestoneID возвращает escrow запись по этапу.
func (r *EscrowRepository) GetByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	var entry models.EscrowEntry
	err := r.db.GetContext(ctx, &entry, `SELECT * FROM escrow_entries WHERE milestone_id = $1`, milestoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// GetBalance возвращает баланс пользователя, создаёт если не существует.
func (r *EscrowRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	query := `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, available, frozen, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("escrow repository: get balance %w", err)
	}
	return &balance, nil
}

// Deposit пополняет баланс пользователя.
func (r *EscrowRepository) Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := creditBalance(ctx, tx, userID, amount); err != nil {
		return nil, fmt.Errorf("escrow repository: deposit update balance %w", err)
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (user_id, type, amount, status, description, completed_at)
		VALUES ($1, 'deposit', $2, 'completed', $3, NOW())
		RETURNING id, user_id, milestone_id, type, amount, status, description, created_at, completed_at
	`, userID, amount, description)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: deposit create transaction %w", err)
	}

	return &transaction, tx.Commit()
}

// ListTransactions возвращает журнал транзакций пользователя.
func (r *EscrowRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, milestone_id, type, amount, status, description, created_at, completed_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return transactions, err
}

// lockEscrowEntry берёт запись escrow под блокировку в рамках транзакции.
func lockEscrowEntry(ctx context.Context, tx *sqlx.Tx, milestoneID uuid.UUID) (*models.EscrowEntry, error) {
	var entry models.EscrowEntry
	err := tx.GetContext(ctx, &entry, `SELECT * FROM escrow_entries WHERE milestone_id = $1 FOR UPDATE`, milestoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// creditBalance начисляет средства на доступный баланс пользователя.
func creditBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, userID, amount)
	return err
}

// settledError переводит терминальный статус записи в sentinel ошибку.
func settledError(status string) error {
	if status == models.EscrowStatusReleased {
		return ErrEscrowAlreadyReleased
	}
	return ErrEscrowAlreadyRefunded
}
