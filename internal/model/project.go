// Package model defines the core domain types for the evaluation dashboard.
//
// Types correspond directly to database tables. Remote scorer wire types live
// in internal/scorer and are converted into these types at the client boundary.
package model

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Project groups applications.
type Project struct {
	ProjectID   int64     `json:"project_id"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"register_date"`
}

// Application is a deployable ML application inside a project.
// Evaluations and services are always scoped to one application.
type Application struct {
	ApplicationID   int64     `json:"application_id"`
	ProjectID       int64     `json:"project_id"`
	ApplicationName string    `json:"application_name"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"register_date"`
}

// Model is a trained model artifact registered for an application.
type Model struct {
	ModelID       int64     `json:"model_id"`
	ApplicationID int64     `json:"application_id"`
	Description   string    `json:"description"`
	FilePath      string    `json:"filepath"`
	CreatedAt     time.Time `json:"register_date"`
}

// ServiceLevel is the deployment stage a service runs in.
type ServiceLevel string

const (
	ServiceLevelDevelopment ServiceLevel = "development"
	ServiceLevelBeta        ServiceLevel = "beta"
	ServiceLevelStaging     ServiceLevel = "staging"
	ServiceLevelSandbox     ServiceLevel = "sandbox"
	ServiceLevelProduction  ServiceLevel = "production"
)

// ValidServiceLevel reports whether s is a known service level.
func ValidServiceLevel(s ServiceLevel) bool {
	switch s {
	case ServiceLevelDevelopment, ServiceLevelBeta, ServiceLevelStaging, ServiceLevelSandbox, ServiceLevelProduction:
		return true
	}
	return false
}

// Service is a live model server deployment. Several services in one
// application may serve the same model.
type Service struct {
	ServiceID     string       `json:"service_id"`
	ApplicationID int64        `json:"application_id"`
	DisplayName   string       `json:"display_name"`
	Description   string       `json:"description"`
	ServiceLevel  ServiceLevel `json:"service_level"`
	ModelID       int64        `json:"model_id"`
	InsecureHost  string       `json:"insecure_host"`
	InsecurePort  int          `json:"insecure_port"`
	CreatedAt     time.Time    `json:"register_date"`
}

// Endpoint returns the host:port the remote scorer listens on.
func (s Service) Endpoint() string {
	return net.JoinHostPort(s.InsecureHost, strconv.Itoa(s.InsecurePort))
}

// Validate checks the fields required to reach the service.
func (s Service) Validate() error {
	if s.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if s.InsecureHost == "" {
		return fmt.Errorf("insecure_host is required")
	}
	if s.InsecurePort <= 0 || s.InsecurePort > 65535 {
		return fmt.Errorf("insecure_port must be between 1 and 65535 (got %d)", s.InsecurePort)
	}
	if s.ServiceLevel != "" && !ValidServiceLevel(s.ServiceLevel) {
		return fmt.Errorf("unknown service_level %q", s.ServiceLevel)
	}
	return nil
}
