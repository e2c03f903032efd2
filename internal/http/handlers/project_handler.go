package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// ProjectHandler предоставляет HTTP слой для проектов и их этапов.
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler создаёт хэндлер.
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// CreateProject обрабатывает POST /projects.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateProjectRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	freelancerID, err := uuid.Parse(req.FreelancerID)
	if err != nil {
		common.RespondBadRequest(c, "некорректный freelancer_id")
		return
	}

	deadline, err := req.ParseDeadline()
	if err != nil {
		common.RespondBadRequest(c, "некорректный формат deadline_at, ожидается RFC3339")
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), userID, freelancerID, role, req.Title, req.Description, deadline)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// GetProject обрабатывает GET /projects/:id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	overview, err := h.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// ListProjects обрабатывает GET /projects.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	projects, err := h.projects.ListProjects(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedProjectsResponse{
		Projects: projects,
		Limit:    limit,
		Offset:   offset,
	})
}

// AddMilestone обрабатывает POST /projects/:id/milestones.
func (h *ProjectHandler) AddMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.AddMilestoneRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dueDate, err := req.ParseDueDate()
	if err != nil {
		common.RespondBadRequest(c, "некорректный формат due_date, ожидается RFC3339")
		return
	}

	milestone, err := h.projects.AddMilestone(c.Request.Context(), projectID, userID, role, req.Title, req.Description, req.Amount, dueDate)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, milestone)
}

// Dashboard обрабатывает GET /dashboard.
func (h *ProjectHandler) Dashboard(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	stats, err := h.projects.GetDashboardStats(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
