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

// BidHandler - структура для обработки HTTP-запросов по предложениям.
type BidHandler struct {
	Service  *services.BidService
	Logger   zerolog.Logger
	Timeout  time.Duration
	validate *validator.Validate
}

// NewBidHandler создает новый экземпляр BidHandler.
func NewBidHandler(service *services.BidService, logger zerolog.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Service:  service,
		Logger:   logger,
		Timeout:  timeout,
		validate: validator.New(),
	}
}

// SubmitBid обрабатывает запросы на подачу предложения по проекту.
func (h *BidHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")

	var bidReq models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(bidReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	newBid, err := h.Service.SubmitBid(ctx, projectID, bidReq)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("project_id", projectID).Msg("failed to submit bid")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to submit bid")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, newBid)
}

// AcceptBid обрабатывает запросы на принятие предложения.
func (h *BidHandler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")
	bidID := r.PathValue("bidId")

	var decisionReq models.BidDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&decisionReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(decisionReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	project, err := h.Service.AcceptBid(ctx, projectID, bidID, decisionReq.ClientID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("bid_id", bidID).Msg("failed to accept bid")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to accept bid")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, project)
}

// RejectBid обрабатывает запросы на отклонение предложения.
func (h *BidHandler) RejectBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")
	bidID := r.PathValue("bidId")

	var decisionReq models.BidDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&decisionReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(decisionReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	bid, err := h.Service.RejectBid(ctx, projectID, bidID, decisionReq.ClientID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("bid_id", bidID).Msg("failed to reject bid")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to reject bid")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, bid)
}
