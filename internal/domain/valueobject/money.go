package valueobject

import (
	"fmt"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type Money struct {
	Amount   float64
	Currency string
}

func NewMoney(amount float64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if currency == "" {
		currency = "USD"
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewMilestoneAmount создаёт сумму этапа: строго положительную.
func NewMilestoneAmount(amount float64) (Money, error) {
	if amount <= 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма этапа должна быть положительной")
	}
	return Money{Amount: amount, Currency: "USD"}, nil
}

// SplitAmounts держит пару сумм для исхода split.
type SplitAmounts struct {
	ToFreelancer Money
	ToClient     Money
}

// NewSplitAmounts проверяет, что обе части положительны и в сумме
// дают удержанную сумму. Допуск на погрешность float — один цент.
func NewSplitAmounts(toFreelancer, toClient, held float64) (SplitAmounts, error) {
	if toFreelancer <= 0 || toClient <= 0 {
		return SplitAmounts{}, apperror.New(apperror.ErrCodeAmountMismatch, "обе части split должны быть положительными")
	}
	if diff := toFreelancer + toClient - held; diff > 0.01 || diff < -0.01 {
		return SplitAmounts{}, apperror.New(apperror.ErrCodeAmountMismatch,
			fmt.Sprintf("сумма частей %.2f не совпадает с удержанной суммой %.2f", toFreelancer+toClient, held))
	}

	f, _ := NewMoney(toFreelancer, "USD")
	c, _ := NewMoney(toClient, "USD")

	return SplitAmounts{ToFreelancer: f, ToClient: c}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %.2f", m.Currency, m.Amount)
}
