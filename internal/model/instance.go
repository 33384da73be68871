package model

import "time"

// Instance is a managed external-account connection as reported by the
// backend's management API.
type Instance struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Status      InstanceStatus `json:"status"`
	PhoneNumber string         `json:"phoneNumber,omitempty"`
	LinkedAt    *time.Time     `json:"linkedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type CreateInstanceParams struct {
	Name string `json:"name"`
}
