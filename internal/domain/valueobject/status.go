package valueobject

import "github.com/ignatzorin/escrow-backend/internal/pkg/apperror"

type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusSubmitted MilestoneStatus = "submitted"
	MilestoneStatusApproved  MilestoneStatus = "approved"
	MilestoneStatusRejected  MilestoneStatus = "rejected"
)

func (s MilestoneStatus) IsValid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusSubmitted, MilestoneStatusApproved, MilestoneStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода по машине состояний этапа.
// approved — терминальный статус; повторная сдача после rejected разрешена.
func (s MilestoneStatus) CanTransitionTo(newStatus MilestoneStatus) bool {
	transitions := map[MilestoneStatus][]MilestoneStatus{
		MilestoneStatusPending:   {MilestoneStatusSubmitted},
		MilestoneStatusSubmitted: {MilestoneStatusApproved, MilestoneStatusRejected},
		MilestoneStatusRejected:  {MilestoneStatusSubmitted},
		MilestoneStatusApproved:  {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewMilestoneStatus(status string) (MilestoneStatus, error) {
	s := MilestoneStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус этапа")
	}
	return s, nil
}

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusInMediation DisputeStatus = "in_mediation"
	DisputeStatusResolved    DisputeStatus = "resolved"
)

func (s DisputeStatus) IsValid() bool {
	switch s {
	case DisputeStatusOpen, DisputeStatusInMediation, DisputeStatusResolved:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода по машине состояний спора.
// Прямой переход open → resolved разрешён: так моделируется отозванный
// или самостоятельно урегулированный спор.
func (s DisputeStatus) CanTransitionTo(newStatus DisputeStatus) bool {
	transitions := map[DisputeStatus][]DisputeStatus{
		DisputeStatusOpen:        {DisputeStatusInMediation, DisputeStatusResolved},
		DisputeStatusInMediation: {DisputeStatusResolved},
		DisputeStatusResolved:    {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус спора")
	}
	return s, nil
}
