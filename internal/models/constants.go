package models

// Роли пользователей платформы
const (
	RoleFreelancer = "freelancer"
	RoleClient     = "client"
	RoleMediator   = "mediator"
)

// MilestoneStatus константы статусов этапов
const (
	MilestoneStatusPending   = "pending"
	MilestoneStatusSubmitted = "submitted"
	MilestoneStatusApproved  = "approved"
	MilestoneStatusRejected  = "rejected"
)

// ProjectStatus производные статусы проекта (вычисляются, не хранятся)
const (
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusDisputed  = "disputed"
)

// DisputeStatus константы статусов споров
const (
	DisputeStatusOpen        = "open"
	DisputeStatusInMediation = "in_mediation"
	DisputeStatusResolved    = "resolved"
)

// DisputeOutcome варианты решения спора
const (
	OutcomeReleaseToFreelancer = "release_to_freelancer"
	OutcomeRefundToClient      = "refund_to_client"
	OutcomeSplit               = "split"
)

// Отправители сообщений в треде спора.
// Записи медиатора сохраняются от имени системы.
const (
	SenderFreelancer = "freelancer"
	SenderClient     = "client"
	SenderSystem     = "system"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleFreelancer: {},
	RoleClient:     {},
	RoleMediator:   {},
}

// ValidMilestoneStatuses список валидных статусов этапов
var ValidMilestoneStatuses = map[string]struct{}{
	MilestoneStatusPending:   {},
	MilestoneStatusSubmitted: {},
	MilestoneStatusApproved:  {},
	MilestoneStatusRejected:  {},
}

// ValidOutcomes список валидных исходов спора
var ValidOutcomes = map[string]struct{}{
	OutcomeReleaseToFreelancer: {},
	OutcomeRefundToClient:      {},
	OutcomeSplit:               {},
}

// ValidSenders список валидных отправителей сообщений
var ValidSenders = map[string]struct{}{
	SenderFreelancer: {},
	SenderClient:     {},
	SenderSystem:     {},
}
