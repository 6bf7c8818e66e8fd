package models

import "time"

// Event is one observability record.
type Event struct {
	Time   time.Time      `json:"time"`
	Name   string         `json:"event"`
	Fields map[string]any `json:"fields,omitempty"`
}

// LogsResponse is the response for GET /api/v1/logs.
type LogsResponse struct {
	Events   []Event `json:"events"`
	Capacity int     `json:"capacity"`
}
