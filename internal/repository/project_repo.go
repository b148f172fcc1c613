package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/escrow-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// ProjectRepository - интерфейс для работы с проектами и их предложениями.
type ProjectRepository interface {
	CreateProject(ctx context.Context, projectReq models.ProjectRequest) (*models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	GetBid(ctx context.Context, bidID string) (*models.Bid, error)
	InsertBid(ctx context.Context, projectID string, bidReq models.BidRequest) (*models.Bid, error)
	ApplyBidDecision(ctx context.Context, decision models.BidDecisionSet) error
	RejectBid(ctx context.Context, bidID string) error
	UpdateProgress(ctx context.Context, projectID string, progress int, completedAt *time.Time) error
	MarkClientApproved(ctx context.Context, projectID string) error
	MarkPaymentReleased(ctx context.Context, projectID string) error
	ListAcceptedWithoutLedger(ctx context.Context) ([]models.Project, error)
}

// PostgresProjectRepository - реализация ProjectRepository для базы данных.
type PostgresProjectRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresProjectRepository создает новый экземпляр PostgresProjectRepository.
func NewPostgresProjectRepository(db *pgxpool.Pool) *PostgresProjectRepository {
	return &PostgresProjectRepository{DB: db}
}

// CreateProject создает новый проект в статусе open.
func (r *PostgresProjectRepository) CreateProject(ctx context.Context, projectReq models.ProjectRequest) (*models.Project, error) {
	newProject := models.Project{
		ID:          uuid.New().String(),
		ClientID:    projectReq.ClientID,
		Title:       projectReq.Title,
		Description: projectReq.Description,
		Status:      models.OpenProject,
		Progress:    0,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
	}
	insertQuery := `INSERT INTO projects (id, client_id, title, description, status, progress, version, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		newProject.ID,
		newProject.ClientID,
		newProject.Title,
		newProject.Description,
		newProject.Status,
		newProject.Progress,
		newProject.Version,
		newProject.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &newProject, nil
}

// GetProject возвращает проект вместе со списком его предложений.
func (r *PostgresProjectRepository) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	projectQuery := `SELECT id, client_id, title, description, status, progress, assigned_freelancer,
	                        client_approved, payment_released, completed_at, version, created_at
	                 FROM projects WHERE id = $1`
	err := r.DB.QueryRow(ctx, projectQuery, projectID).Scan(
		&project.ID,
		&project.ClientID,
		&project.Title,
		&project.Description,
		&project.Status,
		&project.Progress,
		&project.AssignedFreelancer,
		&project.ClientApproved,
		&project.PaymentReleased,
		&project.CompletedAt,
		&project.Version,
		&project.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	bidsQuery := `SELECT id, project_id, freelancer_id, amount, proposal, status, submitted_at
	              FROM bids WHERE project_id = $1 ORDER BY submitted_at`
	rows, err := r.DB.Query(ctx, bidsQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var bid models.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.ProjectID,
			&bid.FreelancerID,
			&bid.Amount,
			&bid.Proposal,
			&bid.Status,
			&bid.SubmittedAt); err != nil {
			return nil, err
		}
		project.Bids = append(project.Bids, bid)
	}
	return &project, rows.Err()
}

// GetBid возвращает предложение по его ID.
func (r *PostgresProjectRepository) GetBid(ctx context.Context, bidID string) (*models.Bid, error) {
	var bid models.Bid
	query := `SELECT id, project_id, freelancer_id, amount, proposal, status, submitted_at
	          FROM bids WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, bidID).Scan(
		&bid.ID,
		&bid.ProjectID,
		&bid.FreelancerID,
		&bid.Amount,
		&bid.Proposal,
		&bid.Status,
		&bid.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bid, nil
}

// InsertBid добавляет новое предложение к открытому проекту. Вставка охраняется
// статусом проекта: если проект уже не open, строки не будет.
func (r *PostgresProjectRepository) InsertBid(ctx context.Context, projectID string, bidReq models.BidRequest) (*models.Bid, error) {
	newBid := models.Bid{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		FreelancerID: bidReq.FreelancerID,
		Amount:       bidReq.Amount,
		Proposal:     bidReq.Proposal,
		Status:       models.PendingBid,
		SubmittedAt:  time.Now().UTC(),
	}
	insertQuery := `INSERT INTO bids (id, project_id, freelancer_id, amount, proposal, status, submitted_at)
                   SELECT $1, $2, $3, $4, $5, $6, $7
                   WHERE EXISTS (SELECT 1 FROM projects WHERE id = $2 AND status = 'open')`
	tag, err := r.DB.Exec(
		ctx,
		insertQuery,
		newBid.ID,
		newBid.ProjectID,
		newBid.FreelancerID,
		newBid.Amount,
		newBid.Proposal,
		newBid.Status,
		newBid.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateBid
		}
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrProjectNotOpen
	}
	return &newBid, nil
}

// ApplyBidDecision применяет принятие предложения одной транзакцией:
// проект переходит в in_progress с назначенным исполнителем, целевое
// предложение становится accepted, все остальные pending - rejected.
// Охрана по status = 'open' сериализует конкурентные принятия.
func (r *PostgresProjectRepository) ApplyBidDecision(ctx context.Context, decision models.BidDecisionSet) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	projectQuery := `UPDATE projects
	                 SET status = 'in_progress', assigned_freelancer = $1, version = version + 1
	                 WHERE id = $2 AND status = 'open'`
	tag, err := tx.Exec(ctx, projectQuery, decision.FreelancerID, decision.ProjectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotOpen
	}

	acceptQuery := `UPDATE bids SET status = 'accepted'
	                WHERE id = $1 AND project_id = $2 AND status = 'pending'`
	tag, err = tx.Exec(ctx, acceptQuery, decision.AcceptedID, decision.ProjectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBidNotPending
	}

	rejectQuery := `UPDATE bids SET status = 'rejected'
	                WHERE project_id = $1 AND status = 'pending' AND id <> $2`
	if _, err = tx.Exec(ctx, rejectQuery, decision.ProjectID, decision.AcceptedID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RejectBid отклоняет одно ожидающее предложение без смены статуса проекта.
func (r *PostgresProjectRepository) RejectBid(ctx context.Context, bidID string) error {
	query := `UPDATE bids SET status = 'rejected' WHERE id = $1 AND status = 'pending'`
	tag, err := r.DB.Exec(ctx, query, bidID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBidNotPending
	}
	return nil
}

// UpdateProgress обновляет прогресс проекта; при 100% проект завершается.
func (r *PostgresProjectRepository) UpdateProgress(ctx context.Context, projectID string, progress int, completedAt *time.Time) error {
	query := `UPDATE projects
	          SET progress = $2,
	              status = CASE WHEN $2 = 100 THEN 'completed' ELSE status END,
	              completed_at = CASE WHEN $2 = 100 THEN $3 ELSE completed_at END
	          WHERE id = $1 AND status = 'in_progress'`
	tag, err := r.DB.Exec(ctx, query, projectID, progress, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotInProgress
	}
	return nil
}

// MarkClientApproved выставляет монотонный флаг одобрения клиентом.
func (r *PostgresProjectRepository) MarkClientApproved(ctx context.Context, projectID string) error {
	query := `UPDATE projects SET client_approved = true WHERE id = $1`
	_, err := r.DB.Exec(ctx, query, projectID)
	return err
}

// MarkPaymentReleased выставляет монотонный флаг выплаты.
func (r *PostgresProjectRepository) MarkPaymentReleased(ctx context.Context, projectID string) error {
	query := `UPDATE projects SET payment_released = true WHERE id = $1`
	_, err := r.DB.Exec(ctx, query, projectID)
	return err
}

// ListAcceptedWithoutLedger возвращает проекты с принятым предложением,
// по которым ещё нет записи эскроу. Используется сверкой.
func (r *PostgresProjectRepository) ListAcceptedWithoutLedger(ctx context.Context) ([]models.Project, error) {
	query := `SELECT p.id, p.client_id, p.title, p.description, p.status, p.progress, p.assigned_freelancer,
	                 p.client_approved, p.payment_released, p.completed_at, p.version, p.created_at
	          FROM projects p
	          WHERE p.assigned_freelancer IS NOT NULL
	          AND p.status IN ('in_progress', 'completed')
	          AND NOT EXISTS (SELECT 1 FROM escrow_ledger l WHERE l.project_id = p.id)
	          ORDER BY p.created_at`
	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(
			&project.ID,
			&project.ClientID,
			&project.Title,
			&project.Description,
			&project.Status,
			&project.Progress,
			&project.AssignedFreelancer,
			&project.ClientApproved,
			&project.PaymentReleased,
			&project.CompletedAt,
			&project.Version,
			&project.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}
