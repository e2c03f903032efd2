package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMilestoneAmount(t *testing.T) {
	m, err := NewMilestoneAmount(1500)
	assert.NoError(t, err)
	assert.Equal(t, float64(1500), m.Amount)
	assert.Equal(t, "USD", m.Currency)

	_, err = NewMilestoneAmount(0)
	assert.Error(t, err)

	_, err = NewMilestoneAmount(-10)
	assert.Error(t, err)
}

func TestNewSplitAmounts(t *testing.T) {
	split, err := NewSplitAmounts(600, 400, 1000)
	assert.NoError(t, err)
	assert.Equal(t, float64(600), split.ToFreelancer.Amount)
	assert.Equal(t, float64(400), split.ToClient.Amount)

	// Допуск в один цент на погрешность float.
	_, err = NewSplitAmounts(600.004, 399.999, 1000)
	assert.NoError(t, err)

	_, err = NewSplitAmounts(600, 300, 1000)
	assert.Error(t, err)

	_, err = NewSplitAmounts(0, 1000, 1000)
	assert.Error(t, err)

	_, err = NewSplitAmounts(1000, -1, 999)
	assert.Error(t, err)
}

func TestMoneyString(t *testing.T) {
	m, _ := NewMoney(99.5, "")
	assert.Equal(t, "USD 99.50", m.String())
}
