package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/senyabanana/escrow-service/internal/models"
	"github.com/senyabanana/escrow-service/internal/repository"

	"github.com/rs/zerolog"
)

// BidService реализует операции над предложениями: подачу, принятие, отклонение.
type BidService struct {
	projects repository.ProjectRepository
	users    repository.UserRepository
	log      zerolog.Logger
}

// NewBidService создает новый экземпляр BidService.
func NewBidService(projects repository.ProjectRepository, users repository.UserRepository, log zerolog.Logger) *BidService {
	return &BidService{projects: projects, users: users, log: log}
}

// SubmitBid добавляет предложение фрилансера к открытому проекту.
func (s *BidService) SubmitBid(ctx context.Context, projectID string, bidReq models.BidRequest) (*models.Bid, error) {
	if err := requireRole(ctx, s.users, bidReq.FreelancerID, models.FreelancerRole); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "project not found")
		}
		return nil, err
	}

	if evalErr := EvaluateSubmit(project, bidReq); evalErr != nil {
		return nil, evalErr
	}

	bid, err := s.projects.InsertBid(ctx, projectID, bidReq)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateBid):
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonDuplicateBid,
				"freelancer already has a bid on this project")
		case errors.Is(err, repository.ErrProjectNotOpen):
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
				"project is no longer open")
		}
		return nil, err
	}
	return bid, nil
}

// AcceptBid принимает предложение: проект переходит в in_progress,
// остальные ожидающие предложения отклоняются той же записью.
func (s *BidService) AcceptBid(ctx context.Context, projectID, bidID, clientID string) (*models.Project, error) {
	if err := requireRole(ctx, s.users, clientID, models.ClientRole); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "project not found")
		}
		return nil, err
	}
	if project.ClientID != clientID {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.ReasonForbidden,
			"only the project's client may accept bids")
	}

	decision, evalErr := EvaluateAccept(project, bidID)
	if evalErr != nil {
		return nil, evalErr
	}

	if err := s.projects.ApplyBidDecision(ctx, *decision); err != nil {
		switch {
		case errors.Is(err, repository.ErrProjectNotOpen):
			// Конкурентное принятие успело раньше.
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
				"project is no longer open")
		case errors.Is(err, repository.ErrBidNotPending):
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
				"bid is no longer pending")
		}
		return nil, err
	}

	s.log.Info().Str("project_id", projectID).Str("bid_id", bidID).Msg("bid accepted, project moved to in_progress")
	return s.projects.GetProject(ctx, projectID)
}

// RejectBid отклоняет одно ожидающее предложение. Статус проекта не меняется.
func (s *BidService) RejectBid(ctx context.Context, projectID, bidID, clientID string) (*models.Bid, error) {
	if err := requireRole(ctx, s.users, clientID, models.ClientRole); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "project not found")
		}
		return nil, err
	}
	if project.ClientID != clientID {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.ReasonForbidden,
			"only the project's client may reject bids")
	}

	bid, evalErr := EvaluateReject(project, bidID)
	if evalErr != nil {
		return nil, evalErr
	}

	if err := s.projects.RejectBid(ctx, bid.ID); err != nil {
		if errors.Is(err, repository.ErrBidNotPending) {
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
				"bid is no longer pending")
		}
		return nil, err
	}

	rejected := *bid
	rejected.Status = models.RejectedBid
	return &rejected, nil
}
