package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rekcurd/dashboard/internal/model"
)

// CreateProject inserts a project and returns it with its assigned id.
func (db *DB) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO projects (display_name, description, register_date)
		 VALUES ($1, $2, $3) RETURNING project_id`,
		p.DisplayName, p.Description, p.CreatedAt,
	).Scan(&p.ProjectID)
	if err != nil {
		return model.Project{}, fmt.Errorf("storage: create project: %w", classify(err))
	}
	return p, nil
}

// GetProject returns a project by id.
func (db *DB) GetProject(ctx context.Context, projectID int64) (model.Project, error) {
	var p model.Project
	err := db.pool.QueryRow(ctx,
		`SELECT project_id, display_name, description, register_date
		 FROM projects WHERE project_id = $1`, projectID,
	).Scan(&p.ProjectID, &p.DisplayName, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Project{}, fmt.Errorf("storage: project %d: %w", projectID, ErrNotFound)
		}
		return model.Project{}, fmt.Errorf("storage: get project: %w", err)
	}
	return p, nil
}

// CreateApplication inserts an application under an existing project.
func (db *DB) CreateApplication(ctx context.Context, a model.Application) (model.Application, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO applications (project_id, application_name, description, register_date)
		 VALUES ($1, $2, $3, $4) RETURNING application_id`,
		a.ProjectID, a.ApplicationName, a.Description, a.CreatedAt,
	).Scan(&a.ApplicationID)
	if err != nil {
		return model.Application{}, fmt.Errorf("storage: create application: %w", classify(err))
	}
	return a, nil
}

// GetApplication returns an application only if it belongs to projectID.
func (db *DB) GetApplication(ctx context.Context, projectID, applicationID int64) (model.Application, error) {
	var a model.Application
	err := db.pool.QueryRow(ctx,
		`SELECT application_id, project_id, application_name, description, register_date
		 FROM applications WHERE project_id = $1 AND application_id = $2`,
		projectID, applicationID,
	).Scan(&a.ApplicationID, &a.ProjectID, &a.ApplicationName, &a.Description, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Application{}, fmt.Errorf("storage: application %d in project %d: %w", applicationID, projectID, ErrNotFound)
		}
		return model.Application{}, fmt.Errorf("storage: get application: %w", err)
	}
	return a, nil
}

// CreateModel registers a model for an application.
func (db *DB) CreateModel(ctx context.Context, m model.Model) (model.Model, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO models (application_id, description, filepath, register_date)
		 VALUES ($1, $2, $3, $4) RETURNING model_id`,
		m.ApplicationID, m.Description, m.FilePath, m.CreatedAt,
	).Scan(&m.ModelID)
	if err != nil {
		return model.Model{}, fmt.Errorf("storage: create model: %w", classify(err))
	}
	return m, nil
}

// GetModel returns a model only if it belongs to applicationID.
func (db *DB) GetModel(ctx context.Context, applicationID, modelID int64) (model.Model, error) {
	var m model.Model
	err := db.pool.QueryRow(ctx,
		`SELECT model_id, application_id, description, filepath, register_date
		 FROM models WHERE application_id = $1 AND model_id = $2`,
		applicationID, modelID,
	).Scan(&m.ModelID, &m.ApplicationID, &m.Description, &m.FilePath, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Model{}, fmt.Errorf("storage: model %d: %w", modelID, ErrNotFound)
		}
		return model.Model{}, fmt.Errorf("storage: get model: %w", err)
	}
	return m, nil
}

// CreateService registers a service deployment. The model must belong to the
// same application; a model from another application is reported as ErrNotFound.
func (db *DB) CreateService(ctx context.Context, s model.Service) (model.Service, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.ServiceLevel == "" {
		s.ServiceLevel = model.ServiceLevelDevelopment
	}
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO services (service_id, application_id, display_name, description, service_level,
		                       model_id, insecure_host, insecure_port, register_date)
		 SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		 WHERE EXISTS (SELECT 1 FROM models WHERE model_id = $6 AND application_id = $2)`,
		s.ServiceID, s.ApplicationID, s.DisplayName, s.Description, string(s.ServiceLevel),
		s.ModelID, s.InsecureHost, s.InsecurePort, s.CreatedAt,
	)
	if err != nil {
		return model.Service{}, fmt.Errorf("storage: create service: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return model.Service{}, fmt.Errorf("storage: create service: model %d: %w", s.ModelID, ErrNotFound)
	}
	return s, nil
}

// ListServicesByModel returns the services in applicationID that serve
// modelID, ordered by service_id.
func (db *DB) ListServicesByModel(ctx context.Context, applicationID, modelID int64) ([]model.Service, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT service_id, application_id, display_name, description, service_level,
		        model_id, insecure_host, insecure_port, register_date
		 FROM services WHERE application_id = $1 AND model_id = $2
		 ORDER BY service_id ASC`,
		applicationID, modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(
			&s.ServiceID, &s.ApplicationID, &s.DisplayName, &s.Description, &s.ServiceLevel,
			&s.ModelID, &s.InsecureHost, &s.InsecurePort, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list services: %w", err)
	}
	return services, nil
}
