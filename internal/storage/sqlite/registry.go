package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/storage"
)

// CreateProject inserts a project and returns it with its assigned id.
func (d *DB) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	ts := toNanos(p.CreatedAt)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO projects (display_name, description, register_date) VALUES (?, ?, ?)`,
		p.DisplayName, p.Description, ts)
	if err != nil {
		return model.Project{}, fmt.Errorf("storage: create project: %w", classify(err))
	}
	if p.ProjectID, err = res.LastInsertId(); err != nil {
		return model.Project{}, fmt.Errorf("storage: create project: %w", err)
	}
	p.CreatedAt = fromNanos(ts)
	return p, nil
}

// GetProject returns a project by id.
func (d *DB) GetProject(ctx context.Context, projectID int64) (model.Project, error) {
	var (
		p  model.Project
		ts int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT project_id, display_name, description, register_date FROM projects WHERE project_id = ?`,
		projectID,
	).Scan(&p.ProjectID, &p.DisplayName, &p.Description, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Project{}, fmt.Errorf("storage: project %d: %w", projectID, storage.ErrNotFound)
		}
		return model.Project{}, fmt.Errorf("storage: get project: %w", err)
	}
	p.CreatedAt = fromNanos(ts)
	return p, nil
}

// CreateApplication inserts an application under an existing project.
func (d *DB) CreateApplication(ctx context.Context, a model.Application) (model.Application, error) {
	ts := toNanos(a.CreatedAt)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO applications (project_id, application_name, description, register_date) VALUES (?, ?, ?, ?)`,
		a.ProjectID, a.ApplicationName, a.Description, ts)
	if err != nil {
		return model.Application{}, fmt.Errorf("storage: create application: %w", classify(err))
	}
	if a.ApplicationID, err = res.LastInsertId(); err != nil {
		return model.Application{}, fmt.Errorf("storage: create application: %w", err)
	}
	a.CreatedAt = fromNanos(ts)
	return a, nil
}

// GetApplication returns an application only if it belongs to projectID.
func (d *DB) GetApplication(ctx context.Context, projectID, applicationID int64) (model.Application, error) {
	var (
		a  model.Application
		ts int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT application_id, project_id, application_name, description, register_date
		 FROM applications WHERE project_id = ? AND application_id = ?`,
		projectID, applicationID,
	).Scan(&a.ApplicationID, &a.ProjectID, &a.ApplicationName, &a.Description, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Application{}, fmt.Errorf("storage: application %d in project %d: %w", applicationID, projectID, storage.ErrNotFound)
		}
		return model.Application{}, fmt.Errorf("storage: get application: %w", err)
	}
	a.CreatedAt = fromNanos(ts)
	return a, nil
}

// CreateModel registers a model for an application.
func (d *DB) CreateModel(ctx context.Context, m model.Model) (model.Model, error) {
	ts := toNanos(m.CreatedAt)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO models (application_id, description, filepath, register_date) VALUES (?, ?, ?, ?)`,
		m.ApplicationID, m.Description, m.FilePath, ts)
	if err != nil {
		return model.Model{}, fmt.Errorf("storage: create model: %w", classify(err))
	}
	if m.ModelID, err = res.LastInsertId(); err != nil {
		return model.Model{}, fmt.Errorf("storage: create model: %w", err)
	}
	m.CreatedAt = fromNanos(ts)
	return m, nil
}

// GetModel returns a model only if it belongs to applicationID.
func (d *DB) GetModel(ctx context.Context, applicationID, modelID int64) (model.Model, error) {
	var (
		m  model.Model
		ts int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT model_id, application_id, description, filepath, register_date
		 FROM models WHERE application_id = ? AND model_id = ?`,
		applicationID, modelID,
	).Scan(&m.ModelID, &m.ApplicationID, &m.Description, &m.FilePath, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Model{}, fmt.Errorf("storage: model %d: %w", modelID, storage.ErrNotFound)
		}
		return model.Model{}, fmt.Errorf("storage: get model: %w", err)
	}
	m.CreatedAt = fromNanos(ts)
	return m, nil
}

// CreateService registers a service deployment whose model belongs to the
// same application.
func (d *DB) CreateService(ctx context.Context, s model.Service) (model.Service, error) {
	if s.ServiceLevel == "" {
		s.ServiceLevel = model.ServiceLevelDevelopment
	}
	ts := toNanos(s.CreatedAt)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO services (service_id, application_id, display_name, description, service_level,
		                       model_id, insecure_host, insecure_port, register_date)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM models WHERE model_id = ? AND application_id = ?)`,
		s.ServiceID, s.ApplicationID, s.DisplayName, s.Description, string(s.ServiceLevel),
		s.ModelID, s.InsecureHost, s.InsecurePort, ts,
		s.ModelID, s.ApplicationID,
	)
	if err != nil {
		return model.Service{}, fmt.Errorf("storage: create service: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Service{}, fmt.Errorf("storage: create service: %w", err)
	}
	if n == 0 {
		return model.Service{}, fmt.Errorf("storage: create service: model %d: %w", s.ModelID, storage.ErrNotFound)
	}
	s.CreatedAt = fromNanos(ts)
	return s, nil
}

// ListServicesByModel returns the services in applicationID that serve
// modelID, ordered by service_id.
func (d *DB) ListServicesByModel(ctx context.Context, applicationID, modelID int64) ([]model.Service, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT service_id, application_id, display_name, description, service_level,
		        model_id, insecure_host, insecure_port, register_date
		 FROM services WHERE application_id = ? AND model_id = ?
		 ORDER BY service_id ASC`,
		applicationID, modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var (
			s     model.Service
			level string
			ts    int64
		)
		if err := rows.Scan(
			&s.ServiceID, &s.ApplicationID, &s.DisplayName, &s.Description, &level,
			&s.ModelID, &s.InsecureHost, &s.InsecurePort, &ts,
		); err != nil {
			return nil, fmt.Errorf("storage: scan service: %w", err)
		}
		s.ServiceLevel = model.ServiceLevel(level)
		s.CreatedAt = fromNanos(ts)
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list services: %w", err)
	}
	return services, nil
}
