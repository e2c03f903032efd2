package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// MilestoneHandler предоставляет HTTP слой для жизненного цикла этапов.
type MilestoneHandler struct {
	milestones *service.MilestoneService
}

// NewMilestoneHandler создаёт хэндлер.
func NewMilestoneHandler(milestones *service.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones}
}

// GetMilestone обрабатывает GET /milestones/:id.
func (h *MilestoneHandler) GetMilestone(c *gin.Context) {
	milestoneID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	details, err := h.milestones.GetMilestone(c.Request.Context(), milestoneID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// Submit обрабатывает POST /milestones/:id/submit.
func (h *MilestoneHandler) Submit(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}

	milestoneID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SubmitMilestoneRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestone, err := h.milestones.Submit(c.Request.Context(), milestoneID, userID, role, req.Submission)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// Approve обрабатывает POST /milestones/:id/approve.
func (h *MilestoneHandler) Approve(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}

	milestoneID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Feedback *string `json:"feedback"`
	}
	// Тело опционально: approve без отзыва тоже валиден
	_ = c.ShouldBindJSON(&req)

	milestone, err := h.milestones.Approve(c.Request.Context(), milestoneID, userID, role, req.Feedback)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// Reject обрабатывает POST /milestones/:id/reject.
func (h *MilestoneHandler) Reject(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}

	milestoneID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RejectMilestoneRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestone, err := h.milestones.Reject(c.Request.Context(), milestoneID, userID, role, req.Feedback)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

func (h *MilestoneHandler) identity(c *gin.Context) (userID uuid.UUID, role string, ok bool) {
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
