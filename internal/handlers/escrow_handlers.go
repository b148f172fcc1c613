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

// EscrowHandler - структура для обработки HTTP-запросов машины состояний эскроу.
type EscrowHandler struct {
	Service  *services.EscrowService
	Logger   zerolog.Logger
	Timeout  time.Duration
	validate *validator.Validate
}

// NewEscrowHandler создает новый экземпляр EscrowHandler.
func NewEscrowHandler(service *services.EscrowService, logger zerolog.Logger, timeout time.Duration) *EscrowHandler {
	return &EscrowHandler{
		Service:  service,
		Logger:   logger,
		Timeout:  timeout,
		validate: validator.New(),
	}
}

// FundEscrow обрабатывает запросы на финансирование эскроу по принятому предложению.
func (h *EscrowHandler) FundEscrow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")

	var fundReq models.FundEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&fundReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(fundReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	result, err := h.Service.FundEscrow(ctx, projectID, fundReq.BidID, fundReq.ClientID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("project_id", projectID).Msg("failed to fund escrow")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to fund escrow")
		return
	}

	utils.SendJSONResponse(w, http.StatusCreated, result)
}

// UpdateProgress обрабатывает запросы исполнителя на обновление прогресса.
func (h *EscrowHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")

	var progressReq models.ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&progressReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(progressReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	result, err := h.Service.UpdateProgress(ctx, projectID, progressReq.FreelancerID, progressReq.Progress)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("project_id", projectID).Msg("failed to update progress")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to update progress")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, result)
}

// ApproveCompletion обрабатывает запросы клиента на одобрение выполненной работы.
func (h *EscrowHandler) ApproveCompletion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")

	var approveReq models.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&approveReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(approveReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	result, err := h.Service.ApproveCompletion(ctx, projectID, approveReq.ClientID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("project_id", projectID).Msg("failed to approve completion")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to approve completion")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, result)
}

// ReleasePayment обрабатывает запросы оператора на выплату.
func (h *EscrowHandler) ReleasePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	ledgerID := r.PathValue("ledgerId")

	var releaseReq models.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&releaseReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(releaseReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	result, err := h.Service.ReleasePayment(ctx, ledgerID, releaseReq.OperatorID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("ledger_id", ledgerID).Msg("failed to release payment")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to release payment")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, result)
}

// GetLedger обрабатывает запросы на чтение записи эскроу по проекту.
func (h *EscrowHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	projectID := r.PathValue("projectId")

	entry, err := h.Service.GetLedger(ctx, projectID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Str("project_id", projectID).Msg("failed to get ledger entry")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to get ledger entry")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, entry)
}

// Reconcile обрабатывает запросы оператора на внеочередную сверку.
func (h *EscrowHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var reconcileReq models.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&reconcileReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, "invalid request body")
		return
	}
	if err := h.validate.Struct(reconcileReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.ReasonInvalidInput, err.Error())
		return
	}

	report, err := h.Service.ReconcileOutstanding(ctx, reconcileReq.OperatorID)
	if err != nil {
		var errorResponse *models.ErrorResponse
		if errors.As(err, &errorResponse) {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Reason, errorResponse.Message)
			return
		}
		h.Logger.Error().Err(err).Msg("failed to reconcile")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to reconcile")
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, report)
}
