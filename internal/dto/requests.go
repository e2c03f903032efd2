package dto

import (
	"time"
)

// RegisterRequest represents the request to register a user
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest represents the request to log in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the request to refresh tokens
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateProjectRequest represents the request to create a project
type CreateProjectRequest struct {
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description"`
	FreelancerID string  `json:"freelancer_id" binding:"required"`
	DeadlineAt   *string `json:"deadline_at"`
}

// AddMilestoneRequest represents the request to add a milestone
type AddMilestoneRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" binding:"required"`
	DueDate     string  `json:"due_date" binding:"required"`
}

// SubmitMilestoneRequest represents the request to submit milestone work
type SubmitMilestoneRequest struct {
	Submission string `json:"submission" binding:"required"`
}

// RejectMilestoneRequest represents the request to reject milestone work
type RejectMilestoneRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// OpenDisputeRequest represents the request to open a dispute
type OpenDisputeRequest struct {
	MilestoneID string `json:"milestone_id" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

// ResolveDisputeRequest represents the request to resolve a dispute
type ResolveDisputeRequest struct {
	Resolution        string  `json:"resolution" binding:"required"`
	Outcome           string  `json:"outcome" binding:"required"`
	SplitToFreelancer float64 `json:"split_to_freelancer"`
	SplitToClient     float64 `json:"split_to_client"`
}

// PostMessageRequest represents the request to post a dispute message
type PostMessageRequest struct {
	Content    string  `json:"content" binding:"required"`
	Attachment *string `json:"attachment"`
}

// DepositRequest represents the request to top up the balance
type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// ParseDeadline converts string deadline to time.Time pointer
func (r *CreateProjectRequest) ParseDeadline() (*time.Time, error) {
	if r.DeadlineAt == nil || *r.DeadlineAt == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *r.DeadlineAt)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseDueDate converts string due date to time.Time
func (r *AddMilestoneRequest) ParseDueDate() (time.Time, error) {
	return time.Parse(time.RFC3339, r.DueDate)
}
