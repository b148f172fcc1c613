package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/senyabanana/escrow-service/internal/models"
	"github.com/senyabanana/escrow-service/internal/services"
	"github.com/senyabanana/escrow-service/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ProjectHandler - структура для обработки HTTP-запросов по проектам.
type ProjectHandler struct {
	Service  *services.ProjectService
	Logger   zerolog.Logger
	Timeout  time.Duration
	validate *validator.Validate
}

// NewProjectHandler создает новый экземпляр ProjectHandler.
func NewProjectHandler(service *services.ProjectService, logger zerolog.Logger, timeout time.Duration) *ProjectHandler {
	return &ProjectHandler{
		Service:  service,
		Logger:   logger,
		Timeout:  timeout,
		validate: validator.New(),
	}
}

// CreateProject обрабатывает запросы на создание проекта.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var projectReq models.ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&projectReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(projectReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	newProject, err := h.Service.CreateProject(ctx, projectReq)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Msg("failed to create project")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to create project")
		return
	}

	utils.SendJSONResponse(w, http.StatusCreated, newProject)
}

// GetProject обрабатывает запросы на чтение проекта со списком предложений.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")

	project, err := h.Service.GetProject(ctx, projectID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("project_id", projectID).Msg("failed to get project")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to get project")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, project)
}

// GetProjectBids обрабатывает запросы на чтение списка предложений по проекту.
func (h *ProjectHandler) GetProjectBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")

	project, err := h.Service.GetProject(ctx, projectID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("project_id", projectID).Msg("failed to get bids")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to get bids")
		return
	}

	bids := project.Bids
	if bids == nil {
		bids = []models.Bid{}
	}
	utils.SendJSONResponse(w, http.StatusOK, bids)
}
