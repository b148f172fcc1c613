package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/senyabanana/escrow-service/internal/models"
	"github.com/senyabanana/escrow-service/internal/notifications"
	"github.com/senyabanana/escrow-service/internal/repository"

	"github.com/google/uuid"
)

// memStore - потокобезопасное хранилище в памяти, реализующее все три
// интерфейса репозиториев с той же семантикой охранных условий, что и Postgres.
type memStore struct {
	mu       sync.Mutex
	projects map[string]*models.Project
	ledgers  map[string]*models.LedgerEntry
	roles    map[string]models.Role
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[string]*models.Project),
		ledgers:  make(map[string]*models.LedgerEntry),
		roles:    make(map[string]models.Role),
	}
}

func copyProject(p *models.Project) *models.Project {
	cp := *p
	cp.Bids = append([]models.Bid(nil), p.Bids...)
	return &cp
}

func copyEntry(e *models.LedgerEntry) *models.LedgerEntry {
	cp := *e
	return &cp
}

func (m *memStore) CreateProject(ctx context.Context, projectReq models.ProjectRequest) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project := &models.Project{
		ID:          uuid.New().String(),
		ClientID:    projectReq.ClientID,
		Title:       projectReq.Title,
		Description: projectReq.Description,
		Status:      models.OpenProject,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
	}
	m.projects[project.ID] = project
	return copyProject(project), nil
}

func (m *memStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[projectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyProject(project), nil
}

func (m *memStore) GetBid(ctx context.Context, bidID string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, project := range m.projects {
		for i := range project.Bids {
			if project.Bids[i].ID == bidID {
				bid := project.Bids[i]
				return &bid, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) InsertBid(ctx context.Context, projectID string, bidReq models.BidRequest) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[projectID]
	if !ok || project.Status != models.OpenProject {
		return nil, repository.ErrProjectNotOpen
	}
	for _, bid := range project.Bids {
		if bid.FreelancerID == bidReq.FreelancerID {
			return nil, repository.ErrDuplicateBid
		}
	}
	bid := models.Bid{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		FreelancerID: bidReq.FreelancerID,
		Amount:       bidReq.Amount,
		Proposal:     bidReq.Proposal,
		Status:       models.PendingBid,
		SubmittedAt:  time.Now().UTC(),
	}
	project.Bids = append(project.Bids, bid)
	return &bid, nil
}

func (m *memStore) ApplyBidDecision(ctx context.Context, decision models.BidDecisionSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[decision.ProjectID]
	if !ok || project.Status != models.OpenProject {
		return repository.ErrProjectNotOpen
	}
	accepted := false
	for i := range project.Bids {
		if project.Bids[i].ID == decision.AcceptedID {
			if project.Bids[i].Status != models.PendingBid {
				return repository.ErrBidNotPending
			}
			project.Bids[i].Status = models.AcceptedBid
			accepted = true
		}
	}
	if !accepted {
		return repository.ErrBidNotPending
	}
	for i := range project.Bids {
		if project.Bids[i].ID != decision.AcceptedID && project.Bids[i].Status == models.PendingBid {
			project.Bids[i].Status = models.RejectedBid
		}
	}
	freelancerID := decision.FreelancerID
	project.AssignedFreelancer = &freelancerID
	project.Status = models.InProgressProject
	project.Version++
	return nil
}

func (m *memStore) RejectBid(ctx context.Context, bidID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, project := range m.projects {
		for i := range project.Bids {
			if project.Bids[i].ID == bidID {
				if project.Bids[i].Status != models.PendingBid {
					return repository.ErrBidNotPending
				}
				project.Bids[i].Status = models.RejectedBid
				return nil
			}
		}
	}
	return repository.ErrBidNotPending
}

func (m *memStore) UpdateProgress(ctx context.Context, projectID string, progress int, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[projectID]
	if !ok || project.Status != models.InProgressProject {
		return repository.ErrProjectNotInProgress
	}
	project.Progress = progress
	if progress == 100 {
		project.Status = models.CompletedProject
		project.CompletedAt = completedAt
	}
	return nil
}

func (m *memStore) MarkClientApproved(ctx context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if project, ok := m.projects[projectID]; ok {
		project.ClientApproved = true
	}
	return nil
}

func (m *memStore) MarkPaymentReleased(ctx context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if project, ok := m.projects[projectID]; ok {
		project.PaymentReleased = true
	}
	return nil
}

func (m *memStore) ListAcceptedWithoutLedger(ctx context.Context) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var projects []models.Project
	for _, project := range m.projects {
		if project.AssignedFreelancer == nil {
			continue
		}
		if project.Status != models.InProgressProject && project.Status != models.CompletedProject {
			continue
		}
		funded := false
		for _, entry := range m.ledgers {
			if entry.ProjectID == project.ID {
				funded = true
				break
			}
		}
		if !funded {
			projects = append(projects, *copyProject(project))
		}
	}
	return projects, nil
}

func (m *memStore) CreateEntry(ctx context.Context, entry models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ledgers {
		if existing.ProjectID == entry.ProjectID {
			return repository.ErrLedgerExists
		}
	}
	m.ledgers[entry.ID] = copyEntry(&entry)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, ledgerID string) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.ledgers[ledgerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEntry(entry), nil
}

func (m *memStore) GetByProject(ctx context.Context, projectID string) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.ledgers {
		if entry.ProjectID == projectID {
			return copyEntry(entry), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) SetProjectStatus(ctx context.Context, projectID string, status models.LedgerProjectStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.ledgers {
		if entry.ProjectID == projectID {
			entry.ProjectStatus = status
			return nil
		}
	}
	return nil
}

func (m *memStore) Approve(ctx context.Context, projectID string, approvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.ledgers {
		if entry.ProjectID == projectID {
			if entry.ClientApproval.Approved {
				return repository.ErrLedgerConflict
			}
			at := approvedAt
			entry.ClientApproval = models.ClientApproval{Approved: true, ApprovedAt: &at}
			entry.ProjectStatus = models.LedgerApproved
			return nil
		}
	}
	return repository.ErrLedgerConflict
}

func (m *memStore) Release(ctx context.Context, ledgerID string, releasedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.ledgers[ledgerID]
	if !ok {
		return repository.ErrLedgerConflict
	}
	if entry.PaymentStatus != models.EscrowDeposited || !entry.ClientApproval.Approved {
		return repository.ErrLedgerConflict
	}
	at := releasedAt
	entry.PaymentStatus = models.ReleasedPayment
	entry.PaymentReleasedAt = &at
	return nil
}

func (m *memStore) MarkNotified(ctx context.Context, ledgerID string, kind models.NotificationKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.ledgers[ledgerID]
	if !ok {
		return repository.ErrNotFound
	}
	switch kind {
	case models.ProposalAcceptedNotification:
		entry.EmailNotifications.ProposalAcceptedSent = true
	case models.ReleaseRequestedNotification:
		entry.EmailNotifications.PaymentReleaseSent = true
	case models.PaymentReleasedNotification:
		entry.EmailNotifications.PaymentCompletedSent = true
	default:
		return fmt.Errorf("unknown notification kind: %s", kind)
	}
	return nil
}

func (m *memStore) ListUnnotified(ctx context.Context) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []models.LedgerEntry
	for _, entry := range m.ledgers {
		due := !entry.EmailNotifications.ProposalAcceptedSent ||
			(entry.ClientApproval.Approved && !entry.EmailNotifications.PaymentReleaseSent) ||
			(entry.PaymentStatus == models.ReleasedPayment && !entry.EmailNotifications.PaymentCompletedSent)
		if due {
			entries = append(entries, *copyEntry(entry))
		}
	}
	return entries, nil
}

func (m *memStore) GetRole(ctx context.Context, userID string) (models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[userID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return role, nil
}

var (
	_ repository.ProjectRepository = (*memStore)(nil)
	_ repository.LedgerRepository  = (*memStore)(nil)
	_ repository.UserRepository    = (*memStore)(nil)
)

// dispatchCall фиксирует один вызов диспетчера для проверок в тестах.
type dispatchCall struct {
	Kind    models.NotificationKind
	Payload notifications.Payload
}

// recordingDispatcher записывает отправки и умеет имитировать отказ по виду.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	fail  map[models.NotificationKind]bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{fail: make(map[models.NotificationKind]bool)}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, kind models.NotificationKind, payload notifications.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[kind] {
		return fmt.Errorf("dispatch %s failed", kind)
	}
	d.calls = append(d.calls, dispatchCall{Kind: kind, Payload: payload})
	return nil
}

func (d *recordingDispatcher) callsFor(kind models.NotificationKind) []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var calls []dispatchCall
	for _, call := range d.calls {
		if call.Kind == kind {
			calls = append(calls, call)
		}
	}
	return calls
}

var _ notifications.Dispatcher = (*recordingDispatcher)(nil)
