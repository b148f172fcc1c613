package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/senyabanana/escrow-service/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type escrowEnv struct {
	store  *memStore
	disp   *recordingDispatcher
	bids   *BidService
	escrow *EscrowService
}

func newEscrowEnv(t *testing.T) *escrowEnv {
	t.Helper()
	store := newMemStore()
	store.roles["client-1"] = models.ClientRole
	store.roles["client-2"] = models.ClientRole
	store.roles["freelancer-1"] = models.FreelancerRole
	store.roles["operator-1"] = models.OperatorRole

	disp := newRecordingDispatcher()
	escrow := NewEscrowService(store, store, store, disp, zerolog.Nop())
	escrow.nowFn = func() time.Time { return fixedNow }

	return &escrowEnv{
		store:  store,
		disp:   disp,
		bids:   NewBidService(store, store, zerolog.Nop()),
		escrow: escrow,
	}
}

// assignedProject создает проект с принятым предложением на заданную сумму.
func (e *escrowEnv) assignedProject(t *testing.T, amount float64) (*models.Project, *models.Bid) {
	t.Helper()
	ctx := context.Background()
	project, err := e.store.CreateProject(ctx, models.ProjectRequest{
		ClientID:    "client-1",
		Title:       "api integration",
		Description: "integrate the payment api",
	})
	require.NoError(t, err)

	bid, err := e.bids.SubmitBid(ctx, project.ID, models.BidRequest{
		FreelancerID: "freelancer-1",
		Amount:       amount,
		Proposal:     "ten days of work",
	})
	require.NoError(t, err)

	_, err = e.bids.AcceptBid(ctx, project.ID, bid.ID, "client-1")
	require.NoError(t, err)
	return project, bid
}

// fundedProject доводит проект до состояния с заполненной записью эскроу.
func (e *escrowEnv) fundedProject(t *testing.T, amount float64) (*models.Project, *models.LedgerEntry) {
	t.Helper()
	project, bid := e.assignedProject(t, amount)
	result, err := e.escrow.FundEscrow(context.Background(), project.ID, bid.ID, "client-1")
	require.NoError(t, err)
	return project, result.Ledger
}

func TestFundEscrowComputesCommission(t *testing.T) {
	env := newEscrowEnv(t)
	project, bid := env.assignedProject(t, 1000)

	result, err := env.escrow.FundEscrow(context.Background(), project.ID, bid.ID, "client-1")
	require.NoError(t, err)

	entry := result.Ledger
	assert.Equal(t, float64(1000), entry.BidAmount)
	assert.Equal(t, float64(100), entry.PlatformCommission)
	assert.Equal(t, float64(1100), entry.EscrowAmount)
	assert.Equal(t, models.EscrowDeposited, entry.PaymentStatus)
	assert.Equal(t, models.LedgerInProgress, entry.ProjectStatus)
	assert.Empty(t, result.Warning)

	assert.True(t, entry.EmailNotifications.ProposalAcceptedSent)
	calls := env.disp.callsFor(models.ProposalAcceptedNotification)
	require.Len(t, calls, 1)
	assert.Equal(t, project.ID, calls[0].Payload.ProjectID)
	assert.Equal(t, float64(1000), calls[0].Payload.Amount)
}

func TestFundEscrowRoundsCommission(t *testing.T) {
	env := newEscrowEnv(t)
	project, bid := env.assignedProject(t, 333.33)

	result, err := env.escrow.FundEscrow(context.Background(), project.ID, bid.ID, "client-1")
	require.NoError(t, err)

	assert.InDelta(t, 33.33, result.Ledger.PlatformCommission, 1e-9)
	assert.InDelta(t, 366.66, result.Ledger.EscrowAmount, 1e-9)
}

func TestFundEscrowTwiceFails(t *testing.T) {
	env := newEscrowEnv(t)
	project, bid := env.assignedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.FundEscrow(ctx, project.ID, bid.ID, "client-1")
	require.NoError(t, err)

	_, err = env.escrow.FundEscrow(ctx, project.ID, bid.ID, "client-1")
	requireReason(t, err, http.StatusConflict, models.ReasonAlreadyFunded)

	// Повтор не должен отправить второе уведомление.
	assert.Len(t, env.disp.callsFor(models.ProposalAcceptedNotification), 1)
}

func TestFundEscrowRequiresAcceptedBid(t *testing.T) {
	env := newEscrowEnv(t)
	ctx := context.Background()
	project, err := env.store.CreateProject(ctx, models.ProjectRequest{
		ClientID: "client-1", Title: "site", Description: "small site",
	})
	require.NoError(t, err)
	bid, err := env.bids.SubmitBid(ctx, project.ID, models.BidRequest{
		FreelancerID: "freelancer-1", Amount: 500, Proposal: "a week",
	})
	require.NoError(t, err)

	_, err = env.escrow.FundEscrow(ctx, project.ID, bid.ID, "client-1")
	requireReason(t, err, http.StatusNotFound, models.ReasonNotFound)
}

func TestFundEscrowByForeignClientFails(t *testing.T) {
	env := newEscrowEnv(t)
	project, bid := env.assignedProject(t, 1000)

	_, err := env.escrow.FundEscrow(context.Background(), project.ID, bid.ID, "client-2")
	requireReason(t, err, http.StatusForbidden, models.ReasonForbidden)
}

func TestUpdateProgressCompletesProject(t *testing.T) {
	env := newEscrowEnv(t)
	project, _ := env.fundedProject(t, 1000)
	ctx := context.Background()

	result, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Project.Progress)
	assert.Equal(t, models.InProgressProject, result.Project.Status)

	result, err = env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)
	assert.Equal(t, models.CompletedProject, result.Project.Status)
	require.NotNil(t, result.Project.CompletedAt)
	assert.Equal(t, fixedNow, *result.Project.CompletedAt)

	entry, err := env.store.GetByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerCompleted, entry.ProjectStatus)
}

func TestUpdateProgressValidation(t *testing.T) {
	env := newEscrowEnv(t)
	project, _ := env.fundedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 101)
	requireReason(t, err, http.StatusBadRequest, models.ReasonInvalidInput)

	_, err = env.escrow.UpdateProgress(ctx, project.ID, "client-1", 50)
	requireReason(t, err, http.StatusForbidden, models.ReasonForbidden)

	_, err = env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)

	// Завершённый проект больше не принимает прогресс.
	_, err = env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 90)
	requireReason(t, err, http.StatusConflict, models.ReasonInvalidState)
}

func TestApproveCompletion(t *testing.T) {
	env := newEscrowEnv(t)
	project, _ := env.fundedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)

	result, err := env.escrow.ApproveCompletion(ctx, project.ID, "client-1")
	require.NoError(t, err)

	assert.True(t, result.Ledger.ClientApproval.Approved)
	require.NotNil(t, result.Ledger.ClientApproval.ApprovedAt)
	assert.Equal(t, fixedNow, *result.Ledger.ClientApproval.ApprovedAt)
	assert.Equal(t, models.LedgerApproved, result.Ledger.ProjectStatus)
	assert.True(t, result.Project.ClientApproved)
	assert.True(t, result.Ledger.EmailNotifications.PaymentReleaseSent)
	assert.Len(t, env.disp.callsFor(models.ReleaseRequestedNotification), 1)
}

func TestApproveCompletionTwiceFails(t *testing.T) {
	env := newEscrowEnv(t)
	project, _ := env.fundedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)
	_, err = env.escrow.ApproveCompletion(ctx, project.ID, "client-1")
	require.NoError(t, err)

	_, err = env.escrow.ApproveCompletion(ctx, project.ID, "client-1")
	requireReason(t, err, http.StatusConflict, models.ReasonInvalidState)
	assert.Len(t, env.disp.callsFor(models.ReleaseRequestedNotification), 1)
}

func TestApproveBeforeCompletionFails(t *testing.T) {
	env := newEscrowEnv(t)
	project, _ := env.fundedProject(t, 1000)

	_, err := env.escrow.ApproveCompletion(context.Background(), project.ID, "client-1")
	requireReason(t, err, http.StatusConflict, models.ReasonInvalidState)
}

func TestApproveWithoutFundingFails(t *testing.T) {
	env := newEscrowEnv(t)
	project, _ := env.assignedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)

	_, err = env.escrow.ApproveCompletion(ctx, project.ID, "client-1")
	requireReason(t, err, http.StatusNotFound, models.ReasonNotFound)
}

func TestReleaseBeforeApprovalFails(t *testing.T) {
	env := newEscrowEnv(t)
	project, entry := env.fundedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)

	_, err = env.escrow.ReleasePayment(ctx, entry.ID, "operator-1")
	requireReason(t, err, http.StatusConflict, models.ReasonInvalidState)

	stored, err := env.store.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowDeposited, stored.PaymentStatus)
	assert.Nil(t, stored.PaymentReleasedAt)
}

func TestReleasePayment(t *testing.T) {
	env := newEscrowEnv(t)
	project, entry := env.fundedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)
	_, err = env.escrow.ApproveCompletion(ctx, project.ID, "client-1")
	require.NoError(t, err)

	result, err := env.escrow.ReleasePayment(ctx, entry.ID, "operator-1")
	require.NoError(t, err)

	assert.Equal(t, models.ReleasedPayment, result.Ledger.PaymentStatus)
	require.NotNil(t, result.Ledger.PaymentReleasedAt)
	assert.Equal(t, fixedNow, *result.Ledger.PaymentReleasedAt)
	assert.True(t, result.Ledger.EmailNotifications.PaymentCompletedSent)
	assert.Len(t, env.disp.callsFor(models.PaymentReleasedNotification), 1)

	finalProject, err := env.store.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.True(t, finalProject.PaymentReleased)
}

func TestReleasePaymentTwiceFails(t *testing.T) {
	env := newEscrowEnv(t)
	project, entry := env.fundedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)
	_, err = env.escrow.ApproveCompletion(ctx, project.ID, "client-1")
	require.NoError(t, err)
	_, err = env.escrow.ReleasePayment(ctx, entry.ID, "operator-1")
	require.NoError(t, err)

	_, err = env.escrow.ReleasePayment(ctx, entry.ID, "operator-1")
	requireReason(t, err, http.StatusConflict, models.ReasonAlreadyReleased)
	assert.Len(t, env.disp.callsFor(models.PaymentReleasedNotification), 1)
}

func TestReleasePaymentRequiresOperator(t *testing.T) {
	env := newEscrowEnv(t)
	project, entry := env.fundedProject(t, 1000)
	ctx := context.Background()

	_, err := env.escrow.UpdateProgress(ctx, project.ID, "freelancer-1", 100)
	require.NoError(t, err)
	_, err = env.escrow.ApproveCompletion(ctx, project.ID, "client-1")
	require.NoError(t, err)

	_, err = env.escrow.ReleasePayment(ctx, entry.ID, "client-1")
	requireReason(t, err, http.StatusForbidden, models.ReasonForbidden)
}

func TestDispatchFailureSetsWarningAndReconcileRetries(t *testing.T) {
	env := newEscrowEnv(t)
	env.disp.fail[models.ProposalAcceptedNotification] = true
	project, bid := env.assignedProject(t, 1000)
	ctx := context.Background()

	result, err := env.escrow.FundEscrow(ctx, project.ID, bid.ID, "client-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	assert.False(t, result.Ledger.EmailNotifications.ProposalAcceptedSent)

	stored, err := env.store.GetByID(ctx, result.Ledger.ID)
	require.NoError(t, err)
	assert.False(t, stored.EmailNotifications.ProposalAcceptedSent)

	env.disp.fail[models.ProposalAcceptedNotification] = false
	report, err := env.escrow.ReconcileOutstanding(ctx, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Redispatched)

	stored, err = env.store.GetByID(ctx, result.Ledger.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailNotifications.ProposalAcceptedSent)
	assert.Len(t, env.disp.callsFor(models.ProposalAcceptedNotification), 1)
}

func TestReconcileReportsUnfundedProjects(t *testing.T) {
	env := newEscrowEnv(t)
	project, _ := env.assignedProject(t, 1000)

	report, err := env.escrow.ReconcileOutstanding(context.Background(), "operator-1")
	require.NoError(t, err)

	assert.Contains(t, report.UnfundedProjectIDs, project.ID)
	assert.Equal(t, 0, report.Redispatched)
}

func TestReconcileRequiresOperator(t *testing.T) {
	env := newEscrowEnv(t)

	_, err := env.escrow.ReconcileOutstanding(context.Background(), "client-1")
	requireReason(t, err, http.StatusForbidden, models.ReasonForbidden)
}
