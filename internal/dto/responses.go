package dto

import (
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// ErrorResponse represents a standardized error payload
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standardized success payload
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse represents the result of registration or login
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// NewAuthResponse creates an AuthResponse from a service result
func NewAuthResponse(result *service.AuthResult) *AuthResponse {
	return &AuthResponse{
		User:   result.User,
		Tokens: result.TokenPair,
	}
}

// DisputeResponse represents a dispute with its message thread
type DisputeResponse struct {
	*models.Dispute
	Messages []models.DisputeMessage `json:"messages,omitempty"`
}

// NewDisputeResponse creates a DisputeResponse from components
func NewDisputeResponse(dispute *models.Dispute, messages []models.DisputeMessage) *DisputeResponse {
	return &DisputeResponse{
		Dispute:  dispute,
		Messages: messages,
	}
}

// BalanceResponse represents a user balance with recent transactions
type BalanceResponse struct {
	Balance      *models.UserBalance  `json:"balance"`
	Transactions []models.Transaction `json:"transactions,omitempty"`
}

// PaginatedProjectsResponse represents a paginated project list
type PaginatedProjectsResponse struct {
	Projects []models.Project `json:"projects"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// PaginatedDisputesResponse represents a paginated dispute list
type PaginatedDisputesResponse struct {
	Disputes []models.Dispute `json:"disputes"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}
