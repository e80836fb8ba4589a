package dto

import (
	"time"

	"github.com/amirphl/backoffice/models"
)

// AccessLogFilterRequest carries the access log list query parameters
type AccessLogFilterRequest struct {
	UserID       *uint
	Action       *string
	ResourceType *string
	Search       *string
	StartDate    *time.Time
	EndDate      *time.Time
}

// AccessLogDTO is one audit record
type AccessLogDTO struct {
	ID           uint               `json:"id"`
	UserID       *uint              `json:"user_id,omitempty"`
	UserEmail    *string            `json:"user_email,omitempty"`
	Action       string             `json:"action"`
	ResourceType string             `json:"resource_type"`
	ResourceID   *string            `json:"resource_id,omitempty"`
	ResourceName *string            `json:"resource_name,omitempty"`
	Method       *string            `json:"method,omitempty"`
	URL          *string            `json:"url,omitempty"`
	StatusCode   *int               `json:"status_code,omitempty"`
	IPAddress    *string            `json:"ip_address,omitempty"`
	UserAgent    *string            `json:"user_agent,omitempty"`
	SessionID    string             `json:"session_id"`
	BrowserInfo  models.BrowserInfo `json:"browser_info"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}
