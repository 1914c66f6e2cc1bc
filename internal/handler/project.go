package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/ledger"
	"github.com/iliyamo/aether/internal/middleware"
	"github.com/iliyamo/aether/internal/model"
	"github.com/iliyamo/aether/internal/service"
)

const dbTimeout = 5 * time.Second

// ProjectHandler serves the owner-scoped project endpoints.
type ProjectHandler struct {
	Orch    *service.Orchestrator
	History *ledger.Ledger
	Cache   *middleware.SiteCache
	Log     zerolog.Logger
}

func NewProjectHandler(orch *service.Orchestrator, history *ledger.Ledger, cache *middleware.SiteCache, log zerolog.Logger) *ProjectHandler {
	if orch == nil || history == nil {
		panic("nil dependency passed to NewProjectHandler")
	}
	return &ProjectHandler{Orch: orch, History: history, Cache: cache, Log: log}
}

// ----- DTOs -----

type createProjectReq struct {
	InitialPrompt string `json:"initial_prompt"`
}

type revisionReq struct {
	Message string `json:"message"`
}

type saveReq struct {
	Code *string `json:"code"`
}

// projectView is the read model clients poll: the project with its
// history, the merged feed and the generation status.
type projectView struct {
	*model.Project
	Feed []model.FeedItem `json:"feed"`
	service.Status
}

// ----- handlers -----

// Create charges the user and starts the first generation in the
// background.  Clients poll Get until current_code is set or status is
// failed.
func (h *ProjectHandler) Create(c echo.Context) error {
	var req createProjectReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
	}
	p, err := h.Orch.CreateProject(c.Request().Context(), middleware.UserID(c), req.InitialPrompt)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"projectId": p.ID})
}

// List returns the caller's projects, newest first.
func (h *ProjectHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	projects, err := h.History.List(ctx, middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"projects": projects})
}

// Get returns the project read model.
func (h *ProjectHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.History.Project(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"project": projectView{
		Project: p,
		Feed:    model.MergeFeed(p.Conversation, p.Versions),
		Status:  h.Orch.Status(p.ID),
	}})
}

// TogglePublish flips public visibility.
func (h *ProjectHandler) TogglePublish(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := c.Param("id")
	published, err := h.History.TogglePublished(ctx, id, middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	h.Cache.Evict(ctx, id)
	msg := "Project unpublished"
	if published {
		msg = "Project published"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "isPublished": published})
}

// Revision runs one revision synchronously.
func (h *ProjectHandler) Revision(c echo.Context) error {
	var req revisionReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
	}
	id := c.Param("id")
	res, err := h.Orch.RequestRevision(c.Request().Context(), middleware.UserID(c), id, req.Message)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	h.Cache.Evict(c.Request().Context(), id)
	return c.JSON(http.StatusOK, res)
}

// Rollback points the project at an earlier version.
func (h *ProjectHandler) Rollback(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := c.Param("id")
	p, err := h.Orch.Rollback(ctx, middleware.UserID(c), id, c.Param("versionId"))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	h.Cache.Evict(ctx, id)
	return c.JSON(http.StatusOK, echo.Map{"message": "Version rolled back", "project": p})
}

// Save stores hand-edited code as the live document without creating a
// version.
func (h *ProjectHandler) Save(c echo.Context) error {
	var req saveReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
	}
	if req.Code == nil || strings.TrimSpace(*req.Code) == "" {
		return writeErr(c, http.StatusBadRequest, ErrCodeInvalidRequest, "code is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := c.Param("id")
	if err := h.History.SaveCode(ctx, id, middleware.UserID(c), *req.Code); err != nil {
		return respondErr(c, h.Log, err)
	}
	h.Cache.Evict(ctx, id)
	return c.JSON(http.StatusOK, echo.Map{"message": "Project saved successfully"})
}

// Delete removes the project with its history.
func (h *ProjectHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := c.Param("id")
	if err := h.Orch.Delete(ctx, middleware.UserID(c), id); err != nil {
		return respondErr(c, h.Log, err)
	}
	h.Cache.Evict(ctx, id)
	return c.JSON(http.StatusOK, echo.Map{"message": "Project deleted successfully"})
}

// Preview returns the owner's view of the live code, the version it was
// generated as and the full version list.  current_code differs from
// current_version.code after a manual save.
func (h *ProjectHandler) Preview(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.History.Project(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	current, err := h.History.CurrentVersion(ctx, p.ID)
	if err != nil {
		return respondErr(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"project": echo.Map{
		"id":                    p.ID,
		"name":                  p.Name,
		"current_code":          p.CurrentCode,
		"current_version_index": p.CurrentVersionID,
		"current_version":       current,
		"versions":              p.Versions,
	}})
}
