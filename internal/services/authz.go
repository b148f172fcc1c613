package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/senyabanana/escrow-service/internal/models"
	"github.com/senyabanana/escrow-service/internal/repository"
)

// requireRole разрешает личность вызывающего в роль и сверяет её с требуемой.
// Неизвестный участник неотличим от участника с чужой ролью.
func requireRole(ctx context.Context, users repository.UserRepository, userID string, role models.Role) error {
	got, err := users.GetRole(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.NewErrorResponse(http.StatusForbidden, models.ReasonForbidden,
				fmt.Sprintf("caller does not hold the %s role", role))
		}
		return err
	}
	if got != role {
		return models.NewErrorResponse(http.StatusForbidden, models.ReasonForbidden,
			fmt.Sprintf("caller does not hold the %s role", role))
	}
	return nil
}
