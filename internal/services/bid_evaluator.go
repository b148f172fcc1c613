package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/senyabanana/escrow-service/internal/models"
)

// Чистая логика проверки операций над списком предложений. Не трогает
// хранилища: получает загруженный проект и выводит требуемое изменение.

// EvaluateSubmit проверяет предпосылки подачи нового предложения.
func EvaluateSubmit(project *models.Project, bidReq models.BidRequest) *models.ErrorResponse {
	if project.Status != models.OpenProject {
		return models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
			fmt.Sprintf("project is %s, bids are accepted only while it is open", project.Status))
	}
	for _, bid := range project.Bids {
		if bid.FreelancerID == bidReq.FreelancerID {
			return models.NewErrorResponse(http.StatusConflict, models.ReasonDuplicateBid,
				"freelancer already has a bid on this project")
		}
	}
	if bidReq.Amount <= 0 {
		return models.NewErrorResponse(http.StatusBadRequest, models.ReasonInvalidInput,
			"bid amount must be positive")
	}
	if strings.TrimSpace(bidReq.Proposal) == "" {
		return models.NewErrorResponse(http.StatusBadRequest, models.ReasonInvalidInput,
			"proposal must not be empty")
	}
	return nil
}

// EvaluateAccept выводит полный набор изменений для принятия предложения:
// принятое, все отклоняемые и назначаемого исполнителя. Набор применяется
// к хранилищу одной записью, промежуточные состояния не видны читателям.
func EvaluateAccept(project *models.Project, bidID string) (*models.BidDecisionSet, *models.ErrorResponse) {
	if project.Status != models.OpenProject {
		return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
			fmt.Sprintf("project is %s, bids can be accepted only while it is open", project.Status))
	}

	var target *models.Bid
	for i := range project.Bids {
		if project.Bids[i].ID == bidID {
			target = &project.Bids[i]
			break
		}
	}
	if target == nil {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "bid not found")
	}
	if target.Status != models.PendingBid {
		return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
			fmt.Sprintf("bid is %s, only pending bids can be accepted", target.Status))
	}

	decision := models.BidDecisionSet{
		ProjectID:    project.ID,
		AcceptedID:   target.ID,
		FreelancerID: target.FreelancerID,
	}
	for _, bid := range project.Bids {
		if bid.ID != bidID && bid.Status == models.PendingBid {
			decision.RejectedIDs = append(decision.RejectedIDs, bid.ID)
		}
	}
	return &decision, nil
}

// EvaluateReject проверяет предпосылки отклонения одного предложения.
// Повторное отклонение - явная ошибка, а не тихий no-op.
func EvaluateReject(project *models.Project, bidID string) (*models.Bid, *models.ErrorResponse) {
	for i := range project.Bids {
		if project.Bids[i].ID == bidID {
			if project.Bids[i].Status != models.PendingBid {
				return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
					fmt.Sprintf("bid is %s, only pending bids can be rejected", project.Bids[i].Status))
			}
			return &project.Bids[i], nil
		}
	}
	return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "bid not found")
}
