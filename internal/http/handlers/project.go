package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	designrepo "github.com/atelierhq/roomora-backend/internal/data/repos/design"
	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/http/middleware"
	"github.com/atelierhq/roomora-backend/internal/http/response"
	"github.com/atelierhq/roomora-backend/internal/pkg/dbctx"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
	"github.com/atelierhq/roomora-backend/internal/temporalx"
	"github.com/atelierhq/roomora-backend/internal/temporalx/designrun"
)

// ProjectHandler exposes the project lifecycle over HTTP. All state mutations
// go through the workflow as intents; the database rows are a read-side
// shadow for listing.
type ProjectHandler struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	projects  designrepo.ProjectRepo
	photos    designrepo.PhotoRepo
	revisions designrepo.RevisionRepo
}

func NewProjectHandler(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	projects designrepo.ProjectRepo,
	photos designrepo.PhotoRepo,
	revisions designrepo.RevisionRepo,
) (*ProjectHandler, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is required")
	}
	if projects == nil || photos == nil || revisions == nil {
		return nil, fmt.Errorf("project handler missing repos")
	}
	return &ProjectHandler{
		log:       log.With("Handler", "ProjectHandler"),
		tc:        tc,
		projects:  projects,
		photos:    photos,
		revisions: revisions,
	}, nil
}

type createProjectRequest struct {
	Title string `json:"title"`
}

type createProjectResponse struct {
	ProjectID  string `json:"project_id"`
	WorkflowID string `json:"workflow_id"`
}

// Create inserts the project row and starts its workflow instance.
func (h *ProjectHandler) Create(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	projectID := uuid.New()
	row := &domain.Project{
		ID:          projectID,
		OwnerUserID: ownerID,
		Title:       strings.TrimSpace(req.Title),
		Status:      string(designrun.StepPhotos),
	}
	if err := h.projects.Create(dbctx.Context{Ctx: c.Request.Context()}, row); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	cfg := temporalx.LoadConfig()
	_, err := h.tc.ExecuteWorkflow(c.Request.Context(), temporalsdkclient.StartWorkflowOptions{
		ID:        designrun.WorkflowID(projectID.String()),
		TaskQueue: cfg.TaskQueue,
	}, designrun.WorkflowName, designrun.Input{
		ProjectID:   projectID.String(),
		OwnerUserID: ownerID.String(),
	})
	if err != nil {
		h.log.Error("workflow start failed", "project_id", projectID.String(), "error", err)
		response.RespondError(c, http.StatusBadGateway, "workflow_start_failed", err)
		return
	}

	response.RespondCreated(c, createProjectResponse{
		ProjectID:  projectID.String(),
		WorkflowID: designrun.WorkflowID(projectID.String()),
	})
}

// List returns the caller's projects from the read-side rows.
func (h *ProjectHandler) List(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}
	rows, err := h.projects.ListByOwner(dbctx.Context{Ctx: c.Request.Context()}, ownerID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, gin.H{"projects": rows})
}

// Get queries the live workflow for the full project state.
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := h.authorizedProject(c)
	if !ok {
		return
	}
	resp, err := h.tc.QueryWorkflow(c.Request.Context(), designrun.WorkflowID(projectID.String()), "", designrun.QueryState)
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "workflow_query_failed", err)
		return
	}
	var state designrun.State
	if err := resp.Get(&state); err != nil {
		response.RespondError(c, http.StatusBadGateway, "workflow_query_failed", err)
		return
	}
	response.RespondOK(c, state)
}

// Intent signals one mutation into the workflow. Photo intents also mirror
// the change into the photo rows so purge has something to delete.
func (h *ProjectHandler) Intent(c *gin.Context) {
	projectID, ok := h.authorizedProject(c)
	if !ok {
		return
	}
	var intent designrun.Intent
	if err := c.ShouldBindJSON(&intent); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if !validIntentKind(intent.Kind) {
		response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("unknown intent kind %q", intent.Kind))
		return
	}

	switch intent.Kind {
	case designrun.IntentAddPhoto:
		if intent.Photo == nil || strings.TrimSpace(intent.Photo.URL) == "" {
			response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("add_photo requires a photo with a url"))
			return
		}
		if intent.Photo.ID == "" {
			intent.Photo.ID = uuid.New().String()
		}
		if intent.Photo.Kind == "" {
			intent.Photo.Kind = domain.PhotoRoom
		}
		h.mirrorPhotoAdd(c, projectID, intent.Photo)
	case designrun.IntentRemovePhoto:
		if strings.TrimSpace(intent.PhotoID) == "" {
			response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("remove_photo requires photo_id"))
			return
		}
		h.mirrorPhotoRemove(c, projectID, intent.PhotoID)
	}

	err := h.tc.SignalWorkflow(c.Request.Context(), designrun.WorkflowID(projectID.String()), "", designrun.SignalIntent, intent)
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "workflow_signal_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"accepted": true, "kind": intent.Kind})
}

// Cancel signals a cancel intent; deleting the HTTP resource means ending
// the workflow, not removing rows (the workflow purges on its way out).
func (h *ProjectHandler) Cancel(c *gin.Context) {
	projectID, ok := h.authorizedProject(c)
	if !ok {
		return
	}
	err := h.tc.SignalWorkflow(c.Request.Context(), designrun.WorkflowID(projectID.String()), "", designrun.SignalIntent, designrun.Intent{Kind: designrun.IntentCancel})
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "workflow_signal_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"accepted": true})
}

// Revisions lists the persisted iteration history.
func (h *ProjectHandler) Revisions(c *gin.Context) {
	projectID, ok := h.authorizedProject(c)
	if !ok {
		return
	}
	rows, err := h.revisions.ListByProject(dbctx.Context{Ctx: c.Request.Context()}, projectID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, gin.H{"revisions": rows})
}

func (h *ProjectHandler) ownerID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(middleware.ContextUserID)
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusForbidden, "forbidden", fmt.Errorf("forbidden"))
		return uuid.Nil, false
	}
	return id, true
}

// authorizedProject parses the path id and checks the caller owns the row.
func (h *ProjectHandler) authorizedProject(c *gin.Context) (uuid.UUID, bool) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return uuid.Nil, false
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid project id"))
		return uuid.Nil, false
	}
	row, err := h.projects.GetByID(dbctx.Context{Ctx: c.Request.Context()}, projectID)
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("project not found"))
		return uuid.Nil, false
	}
	if row.OwnerUserID != ownerID {
		response.RespondError(c, http.StatusForbidden, "forbidden", fmt.Errorf("forbidden"))
		return uuid.Nil, false
	}
	return projectID, true
}

func (h *ProjectHandler) mirrorPhotoAdd(c *gin.Context, projectID uuid.UUID, photo *domain.PhotoRef) {
	id, err := uuid.Parse(photo.ID)
	if err != nil {
		id = uuid.New()
		photo.ID = id.String()
	}
	row := &domain.ProjectPhoto{
		ID:        id,
		ProjectID: projectID,
		Kind:      string(photo.Kind),
		URL:       photo.URL,
	}
	if err := h.photos.Add(dbctx.Context{Ctx: c.Request.Context()}, row); err != nil {
		h.log.Warn("photo mirror add failed", "project_id", projectID.String(), "error", err)
	}
}

func (h *ProjectHandler) mirrorPhotoRemove(c *gin.Context, projectID uuid.UUID, photoID string) {
	id, err := uuid.Parse(photoID)
	if err != nil {
		return
	}
	if err := h.photos.Remove(dbctx.Context{Ctx: c.Request.Context()}, projectID, id); err != nil {
		h.log.Warn("photo mirror remove failed", "project_id", projectID.String(), "error", err)
	}
}

func validIntentKind(kind designrun.IntentKind) bool {
	switch kind {
	case designrun.IntentAddPhoto, designrun.IntentRemovePhoto,
		designrun.IntentScanComplete, designrun.IntentSkipScan,
		designrun.IntentIntakeComplete, designrun.IntentSkipIntake,
		designrun.IntentSelectOption, designrun.IntentStartOver,
		designrun.IntentAnnotationEdit, designrun.IntentFeedbackEdit,
		designrun.IntentApprove, designrun.IntentRetry, designrun.IntentCancel:
		return true
	default:
		return false
	}
}
