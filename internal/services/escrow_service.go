package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/senyabanana/escrow-service/internal/models"
	"github.com/senyabanana/escrow-service/internal/notifications"
	"github.com/senyabanana/escrow-service/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EscrowService - ядро машины состояний: финансирование эскроу, прогресс,
// одобрение клиентом и выплата. Единственный компонент, которому разрешено
// менять и проект, и запись эскроу в одной логической операции.
type EscrowService struct {
	projects   repository.ProjectRepository
	ledger     repository.LedgerRepository
	users      repository.UserRepository
	dispatcher notifications.Dispatcher
	log        zerolog.Logger
	nowFn      func() time.Time
}

// NewEscrowService создает новый экземпляр EscrowService.
func NewEscrowService(
	projects repository.ProjectRepository,
	ledger repository.LedgerRepository,
	users repository.UserRepository,
	dispatcher notifications.Dispatcher,
	log zerolog.Logger,
) *EscrowService {
	return &EscrowService{
		projects:   projects,
		ledger:     ledger,
		users:      users,
		dispatcher: dispatcher,
		log:        log,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// EscrowResult - снимок состояния после перехода. Warning заполняется, когда
// запись состояния прошла, но отправка побочного эффекта не подтвердилась.
type EscrowResult struct {
	Project *models.Project     `json:"project,omitempty"`
	Ledger  *models.LedgerEntry `json:"ledger,omitempty"`
	Warning string              `json:"warning,omitempty"`
}

// ReconcileReport - итог внеочередной сверки проектов и записей эскроу.
type ReconcileReport struct {
	UnfundedProjectIDs []string `json:"unfundedProjectIds"`
	Redispatched       int      `json:"redispatched"`
}

// FundEscrow создает запись эскроу по принятому предложению. Сумма комиссии
// и полная сумма эскроу вычисляются один раз и замораживаются на записи.
func (s *EscrowService) FundEscrow(ctx context.Context, projectID, bidID, clientID string) (*EscrowResult, error) {
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
			"only the project's client may fund escrow")
	}

	var accepted *models.Bid
	for i := range project.Bids {
		if project.Bids[i].ID == bidID && project.Bids[i].Status == models.AcceptedBid {
			accepted = &project.Bids[i]
			break
		}
	}
	if accepted == nil {
		return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound,
			"no accepted bid with this id on the project")
	}

	mirror := models.LedgerInProgress
	if project.Status == models.CompletedProject {
		mirror = models.LedgerCompleted
	}

	now := s.nowFn()
	entry := models.LedgerEntry{
		ID:                 uuid.New().String(),
		ProjectID:          project.ID,
		ClientID:           project.ClientID,
		FreelancerID:       accepted.FreelancerID,
		BidAmount:          accepted.Amount,
		PlatformCommission: models.ComputeCommission(accepted.Amount),
		EscrowAmount:       models.ComputeEscrow(accepted.Amount),
		PaymentStatus:      models.EscrowDeposited,
		ProjectStatus:      mirror,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.ledger.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrLedgerExists) {
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonAlreadyFunded,
				"escrow is already funded for this project")
		}
		return nil, err
	}

	s.log.Info().
		Str("project_id", project.ID).
		Str("ledger_id", entry.ID).
		Float64("bid_amount", entry.BidAmount).
		Float64("escrow_amount", entry.EscrowAmount).
		Msg("escrow funded")

	warning := s.dispatchAndMark(ctx, &entry, models.ProposalAcceptedNotification,
		&entry.EmailNotifications.ProposalAcceptedSent)

	return &EscrowResult{Project: project, Ledger: &entry, Warning: warning}, nil
}

// UpdateProgress обновляет прогресс работы; 100% завершает проект.
func (s *EscrowService) UpdateProgress(ctx context.Context, projectID, freelancerID string, progress int) (*EscrowResult, error) {
	if err := requireRole(ctx, s.users, freelancerID, models.FreelancerRole); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "project not found")
		}
		return nil, err
	}
	if project.AssignedFreelancer == nil || *project.AssignedFreelancer != freelancerID {
		return nil, models.NewErrorResponse(http.StatusForbidden, models.ReasonForbidden,
			"only the assigned freelancer may update progress")
	}
	if progress < 0 || progress > 100 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, models.ReasonInvalidInput,
			"progress must be between 0 and 100")
	}
	if project.Status != models.InProgressProject {
		return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
			fmt.Sprintf("project is %s, progress can be updated only while it is in_progress", project.Status))
	}

	var completedAt *time.Time
	if progress == 100 {
		now := s.nowFn()
		completedAt = &now
	}
	if err := s.projects.UpdateProgress(ctx, projectID, progress, completedAt); err != nil {
		if errors.Is(err, repository.ErrProjectNotInProgress) {
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
				"project is no longer in progress")
		}
		return nil, err
	}

	if progress == 100 {
		// Зеркальный статус на записи эскроу, если проект уже профинансирован.
		if err := s.ledger.SetProjectStatus(ctx, projectID, models.LedgerCompleted); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("project_id", projectID).Msg("failed to mirror completion onto ledger entry")
		}
	}

	updated, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &EscrowResult{Project: updated}, nil
}

// ApproveCompletion фиксирует одобрение клиентом полностью выполненной работы
// и запрашивает выплату у оператора.
func (s *EscrowService) ApproveCompletion(ctx context.Context, projectID, clientID string) (*EscrowResult, error) {
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
			"only the project's client may approve completion")
	}
	if project.Status != models.CompletedProject || project.Progress != 100 {
		return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
			"project work is not fully completed")
	}

	entry, err := s.ledger.GetByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound,
				"escrow is not funded for this project")
		}
		return nil, err
	}
	if entry.ClientApproval.Approved {
		return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
			"completion is already approved")
	}

	approvedAt := s.nowFn()
	if err := s.ledger.Approve(ctx, projectID, approvedAt); err != nil {
		if errors.Is(err, repository.ErrLedgerConflict) {
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
				"completion is already approved")
		}
		return nil, err
	}
	if err := s.projects.MarkClientApproved(ctx, projectID); err != nil {
		return nil, err
	}

	entry.ClientApproval = models.ClientApproval{Approved: true, ApprovedAt: &approvedAt}
	entry.ProjectStatus = models.LedgerApproved
	project.ClientApproved = true

	s.log.Info().Str("project_id", projectID).Str("ledger_id", entry.ID).Msg("completion approved, release requested")

	warning := s.dispatchAndMark(ctx, entry, models.ReleaseRequestedNotification,
		&entry.EmailNotifications.PaymentReleaseSent)

	return &EscrowResult{Project: project, Ledger: entry, Warning: warning}, nil
}

// ReleasePayment переводит платёж в released. Повторная выплата - ошибка
// корректности, а не no-op.
func (s *EscrowService) ReleasePayment(ctx context.Context, ledgerID, operatorID string) (*EscrowResult, error) {
	if err := requireRole(ctx, s.users, operatorID, models.OperatorRole); err != nil {
		return nil, err
	}

	entry, err := s.ledger.GetByID(ctx, ledgerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "ledger entry not found")
		}
		return nil, err
	}
	if entry.PaymentStatus == models.ReleasedPayment {
		return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonAlreadyReleased,
			"payment is already released")
	}
	if !entry.ClientApproval.Approved {
		return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonInvalidState,
			"client has not approved completion")
	}

	releasedAt := s.nowFn()
	if err := s.ledger.Release(ctx, ledgerID, releasedAt); err != nil {
		if errors.Is(err, repository.ErrLedgerConflict) {
			// Конкурентная выплата успела раньше.
			return nil, models.NewErrorResponse(http.StatusConflict, models.ReasonAlreadyReleased,
				"payment is already released")
		}
		return nil, err
	}
	if err := s.projects.MarkPaymentReleased(ctx, entry.ProjectID); err != nil {
		return nil, err
	}

	entry.PaymentStatus = models.ReleasedPayment
	entry.PaymentReleasedAt = &releasedAt

	s.log.Info().
		Str("ledger_id", entry.ID).
		Str("project_id", entry.ProjectID).
		Float64("bid_amount", entry.BidAmount).
		Msg("payment released")

	warning := s.dispatchAndMark(ctx, entry, models.PaymentReleasedNotification,
		&entry.EmailNotifications.PaymentCompletedSent)

	return &EscrowResult{Ledger: entry, Warning: warning}, nil
}

// GetLedger возвращает запись эскроу по проекту.
func (s *EscrowService) GetLedger(ctx context.Context, projectID string) (*models.LedgerEntry, error) {
	entry, err := s.ledger.GetByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound,
				"escrow is not funded for this project")
		}
		return nil, err
	}
	return entry, nil
}

// ReconcileOutstanding - внеочередная сверка: находит проекты с принятым
// предложением без записи эскроу и дотправляет неотправленные уведомления.
// Незафинансированные проекты только отмечаются - финансирование требует
// авторизации клиента и не выполняется автоматически.
func (s *EscrowService) ReconcileOutstanding(ctx context.Context, operatorID string) (*ReconcileReport, error) {
	if err := requireRole(ctx, s.users, operatorID, models.OperatorRole); err != nil {
		return nil, err
	}

	report := &ReconcileReport{}

	unfunded, err := s.projects.ListAcceptedWithoutLedger(ctx)
	if err != nil {
		return nil, err
	}
	for _, project := range unfunded {
		s.log.Warn().Str("project_id", project.ID).Msg("accepted bid without ledger entry, awaiting client funding")
		report.UnfundedProjectIDs = append(report.UnfundedProjectIDs, project.ID)
	}

	entries, err := s.ledger.ListUnnotified(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entry := &entries[i]
		if !entry.EmailNotifications.ProposalAcceptedSent {
			if s.dispatchAndMark(ctx, entry, models.ProposalAcceptedNotification,
				&entry.EmailNotifications.ProposalAcceptedSent) == "" {
				report.Redispatched++
			}
		}
		if entry.ClientApproval.Approved && !entry.EmailNotifications.PaymentReleaseSent {
			if s.dispatchAndMark(ctx, entry, models.ReleaseRequestedNotification,
				&entry.EmailNotifications.PaymentReleaseSent) == "" {
				report.Redispatched++
			}
		}
		if entry.PaymentStatus == models.ReleasedPayment && !entry.EmailNotifications.PaymentCompletedSent {
			if s.dispatchAndMark(ctx, entry, models.PaymentReleasedNotification,
				&entry.EmailNotifications.PaymentCompletedSent) == "" {
				report.Redispatched++
			}
		}
	}
	return report, nil
}

// dispatchAndMark отправляет уведомление после зафиксированной записи и
// выставляет флаг идемпотентности только при подтверждённой отправке.
// Неудача отправки не откатывает переход - возвращается предупреждение.
func (s *EscrowService) dispatchAndMark(ctx context.Context, entry *models.LedgerEntry, kind models.NotificationKind, sent *bool) string {
	if *sent {
		return ""
	}
	payload := notifications.Payload{
		ProjectID:    entry.ProjectID,
		LedgerID:     entry.ID,
		ClientID:     entry.ClientID,
		FreelancerID: entry.FreelancerID,
		Amount:       entry.BidAmount,
	}
	if err := s.dispatcher.Dispatch(ctx, kind, payload); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("ledger_id", entry.ID).Msg("notification dispatch failed")
		return fmt.Sprintf("%s notification was not dispatched", kind)
	}
	if err := s.ledger.MarkNotified(ctx, entry.ID, kind); err != nil {
		// Флаг останется false; сверка отправит повторно, очередь отсеет дубль.
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("ledger_id", entry.ID).Msg("failed to mark notification as sent")
		return ""
	}
	*sent = true
	return ""
}
