package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/prodbudget/quote-api/models"
	"github.com/prodbudget/quote-api/utils"
)

type ProjectService struct {
	db *sql.DB
}

func NewProjectService(db *sql.DB) *ProjectService {
	return &ProjectService{db: db}
}

func (s *ProjectService) Create(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	project := &models.Project{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Client:    req.Client,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, client, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, project.ID, project.Name, project.Client, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, client, created_at, updated_at FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Client, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, client, created_at, updated_at FROM projects ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Client, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *ProjectService) Update(ctx context.Context, id string, req models.CreateProjectRequest) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = $1, client = $2, updated_at = NOW() WHERE id = $3
	`, req.Name, req.Client, id)
	return err
}

// Delete removes a project and all of its quotes.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	return utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM quote_versions WHERE quote_id IN (SELECT id FROM quotes WHERE project_id = $1)`,
			`DELETE FROM work_budgets WHERE quote_id IN (SELECT id FROM quotes WHERE project_id = $1)`,
			`DELETE FROM quote_budgets WHERE quote_id IN (SELECT id FROM quotes WHERE project_id = $1)`,
			`DELETE FROM quotes WHERE project_id = $1`,
			`DELETE FROM projects WHERE id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		return nil
	})
}
