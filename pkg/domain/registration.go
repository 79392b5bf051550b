package domain

import "time"

// Registration records a deployment the control plane has accepted.
type Registration struct {
	URI          string    `json:"uri"`
	DeploymentID string    `json:"deployment_id,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}
