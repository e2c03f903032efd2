package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// DisputeHandler предоставляет HTTP слой для споров и треда сообщений.
type DisputeHandler struct {
	disputes *service.DisputeService
}

// NewDisputeHandler создаёт хэндлер.
func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// OpenDispute обрабатывает POST /disputes.
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}

	var req dto.OpenDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestoneID, err := uuid.Parse(req.MilestoneID)
	if err != nil {
		common.RespondBadRequest(c, "некорректный milestone_id")
		return
	}

	dispute, err := h.disputes.OpenDispute(c.Request.Context(), milestoneID, userID, role, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// GetDispute обрабатывает GET /disputes/:id.
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	messages, err := h.disputes.ListMessages(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDisputeResponse(dispute, messages))
}

// ListMyDisputes обрабатывает GET /disputes.
func (h *DisputeHandler) ListMyDisputes(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.disputes.ListUserDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedDisputesResponse{
		Disputes: disputes,
		Limit:    limit,
		Offset:   offset,
	})
}

// AssignMediator обрабатывает POST /disputes/:id/mediator.
func (h *DisputeHandler) AssignMediator(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.AssignMediator(c.Request.Context(), disputeID, userID, role)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Resolve обрабатывает POST /disputes/:id/resolve.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Resolve(c.Request.Context(), disputeID, userID, role, service.ResolveInput{
		Resolution:        req.Resolution,
		Outcome:           req.Outcome,
		SplitToFreelancer: req.SplitToFreelancer,
		SplitToClient:     req.SplitToClient,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// PostMessage обрабатывает POST /disputes/:id/messages.
func (h *DisputeHandler) PostMessage(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.PostMessageRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	msg, err := h.disputes.PostMessage(c.Request.Context(), disputeID, userID, role, req.Content, req.Attachment)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListMessages обрабатывает GET /disputes/:id/messages.
func (h *DisputeHandler) ListMessages(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	messages, err := h.disputes.ListMessages(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *DisputeHandler) identity(c *gin.Context) (userID uuid.UUID, role string, ok bool) {
	id, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return id, "", false
	}
	r, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return id, "", false
	}
	return id, r, true
}
