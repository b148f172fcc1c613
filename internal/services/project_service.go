package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/senyabanana/escrow-service/internal/models"
	"github.com/senyabanana/escrow-service/internal/repository"
)

// ProjectService реализует вспомогательные операции над проектами.
type ProjectService struct {
	projects repository.ProjectRepository
	users    repository.UserRepository
}

// NewProjectService создает новый экземпляр ProjectService.
func NewProjectService(projects repository.ProjectRepository, users repository.UserRepository) *ProjectService {
	return &ProjectService{projects: projects, users: users}
}

// CreateProject создает новый проект от имени клиента.
func (s *ProjectService) CreateProject(ctx context.Context, projectReq models.ProjectRequest) (*models.Project, error) {
	if err := requireRole(ctx, s.users, projectReq.ClientID, models.ClientRole); err != nil {
		return nil, err
	}
	return s.projects.CreateProject(ctx, projectReq)
}

// GetProject возвращает проект со списком предложений.
func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewErrorResponse(http.StatusNotFound, models.ReasonNotFound, "project not found")
		}
		return nil, err
	}
	return project, nil
}
