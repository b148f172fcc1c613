package repository

import (
	"context"
	"errors"

	"github.com/senyabanana/escrow-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository - интерфейс для разрешения роли участника.
type UserRepository interface {
	GetRole(ctx context.Context, userID string) (models.Role, error)
}

// PostgresUserRepository - реализация UserRepository для базы данных.
type PostgresUserRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresUserRepository создает новый экземпляр PostgresUserRepository.
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// GetRole возвращает роль участника по его ID.
func (r *PostgresUserRepository) GetRole(ctx context.Context, userID string) (models.Role, error) {
	var role models.Role
	query := `SELECT role FROM users WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}
