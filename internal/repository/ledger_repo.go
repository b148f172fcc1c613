package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/escrow-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository - интерфейс для работы с записями эскроу.
type LedgerRepository interface {
	CreateEntry(ctx context.Context, entry models.LedgerEntry) error
	GetByID(ctx context.Context, ledgerID string) (*models.LedgerEntry, error)
	GetByProject(ctx context.Context, projectID string) (*models.LedgerEntry, error)
	SetProjectStatus(ctx context.Context, projectID string, status models.LedgerProjectStatus) error
	Approve(ctx context.Context, projectID string, approvedAt time.Time) error
	Release(ctx context.Context, ledgerID string, releasedAt time.Time) error
	MarkNotified(ctx context.Context, ledgerID string, kind models.NotificationKind) error
	ListUnnotified(ctx context.Context) ([]models.LedgerEntry, error)
}

// PostgresLedgerRepository - реализация LedgerRepository для базы данных.
type PostgresLedgerRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresLedgerRepository создает новый экземпляр PostgresLedgerRepository.
func NewPostgresLedgerRepository(db *pgxpool.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{DB: db}
}

const ledgerColumns = `id, project_id, client_id, freelancer_id, bid_amount, platform_commission,
	escrow_amount, payment_status, project_status, client_approved, approved_at, payment_released_at,
	proposal_accepted_sent, payment_release_sent, payment_completed_sent, created_at, updated_at`

func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := row.Scan(
		&entry.ID,
		&entry.ProjectID,
		&entry.ClientID,
		&entry.FreelancerID,
		&entry.BidAmount,
		&entry.PlatformCommission,
		&entry.EscrowAmount,
		&entry.PaymentStatus,
		&entry.ProjectStatus,
		&entry.ClientApproval.Approved,
		&entry.ClientApproval.ApprovedAt,
		&entry.PaymentReleasedAt,
		&entry.EmailNotifications.ProposalAcceptedSent,
		&entry.EmailNotifications.PaymentReleaseSent,
		&entry.EmailNotifications.PaymentCompletedSent,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// CreateEntry создает запись эскроу. Уникальность project_id гарантирует,
// что повторное финансирование не создаст вторую запись.
func (r *PostgresLedgerRepository) CreateEntry(ctx context.Context, entry models.LedgerEntry) error {
	insertQuery := `INSERT INTO escrow_ledger (id, project_id, client_id, freelancer_id, bid_amount,
	                  platform_commission, escrow_amount, payment_status, project_status,
	                  client_approved, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		entry.ID,
		entry.ProjectID,
		entry.ClientID,
		entry.FreelancerID,
		entry.BidAmount,
		entry.PlatformCommission,
		entry.EscrowAmount,
		entry.PaymentStatus,
		entry.ProjectStatus,
		entry.ClientApproval.Approved,
		entry.CreatedAt,
		entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrLedgerExists
		}
		return err
	}
	return nil
}

// GetByID возвращает запись эскроу по её ID.
func (r *PostgresLedgerRepository) GetByID(ctx context.Context, ledgerID string) (*models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM escrow_ledger WHERE id = $1`, ledgerColumns)
	return scanLedgerEntry(r.DB.QueryRow(ctx, query, ledgerID))
}

// GetByProject возвращает запись эскроу по ID проекта.
func (r *PostgresLedgerRepository) GetByProject(ctx context.Context, projectID string) (*models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM escrow_ledger WHERE project_id = $1`, ledgerColumns)
	return scanLedgerEntry(r.DB.QueryRow(ctx, query, projectID))
}

// SetProjectStatus продвигает зеркальный статус проекта на записи эскроу.
func (r *PostgresLedgerRepository) SetProjectStatus(ctx context.Context, projectID string, status models.LedgerProjectStatus) error {
	query := `UPDATE escrow_ledger SET project_status = $2, updated_at = now() WHERE project_id = $1`
	_, err := r.DB.Exec(ctx, query, projectID, status)
	return err
}

// Approve фиксирует одобрение клиента; повторное одобрение не проходит охрану.
func (r *PostgresLedgerRepository) Approve(ctx context.Context, projectID string, approvedAt time.Time) error {
	query := `UPDATE escrow_ledger
	          SET client_approved = true, approved_at = $2, project_status = 'approved', updated_at = now()
	          WHERE project_id = $1 AND client_approved = false`
	tag, err := r.DB.Exec(ctx, query, projectID, approvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLedgerConflict
	}
	return nil
}

// Release переводит платёж в released; охрана не пропускает повторную выплату
// и выплату без одобрения клиента.
func (r *PostgresLedgerRepository) Release(ctx context.Context, ledgerID string, releasedAt time.Time) error {
	query := `UPDATE escrow_ledger
	          SET payment_status = 'released', payment_released_at = $2, updated_at = now()
	          WHERE id = $1 AND payment_status = 'escrow_deposited' AND client_approved = true`
	tag, err := r.DB.Exec(ctx, query, ledgerID, releasedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLedgerConflict
	}
	return nil
}

// MarkNotified выставляет флаг отправленного уведомления, не более одного раза.
func (r *PostgresLedgerRepository) MarkNotified(ctx context.Context, ledgerID string, kind models.NotificationKind) error {
	var column string
	switch kind {
	case models.ProposalAcceptedNotification:
		column = "proposal_accepted_sent"
	case models.ReleaseRequestedNotification:
		column = "payment_release_sent"
	case models.PaymentReleasedNotification:
		column = "payment_completed_sent"
	default:
		return fmt.Errorf("unknown notification kind: %s", kind)
	}
	query := fmt.Sprintf(`UPDATE escrow_ledger SET %s = true, updated_at = now() WHERE id = $1 AND %s = false`, column, column)
	_, err := r.DB.Exec(ctx, query, ledgerID)
	return err
}

// ListUnnotified возвращает записи эскроу с недоставленными уведомлениями,
// положенными по их текущему состоянию. Используется сверкой.
func (r *PostgresLedgerRepository) ListUnnotified(ctx context.Context) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM escrow_ledger
	          WHERE proposal_accepted_sent = false
	          OR (client_approved = true AND payment_release_sent = false)
	          OR (payment_status = 'released' AND payment_completed_sent = false)
	          ORDER BY created_at`, ledgerColumns)
	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}
