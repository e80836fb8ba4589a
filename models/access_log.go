package models

import (
	"time"

	"gorm.io/datatypes"
)

// Access log action vocabulary. Action is an open string; these are the conventional values.
const (
	AccessActionCreate        = "create"
	AccessActionRead          = "read"
	AccessActionUpdate        = "update"
	AccessActionDelete        = "delete"
	AccessActionLogin         = "login"
	AccessActionLogout        = "logout"
	AccessActionApprove       = "approve"
	AccessActionReject        = "reject"
	AccessActionExport        = "export"
	AccessActionImport        = "import"
	AccessActionSearch        = "search"
	AccessActionDownload      = "download"
	AccessActionUpload        = "upload"
	AccessActionError         = "error"
	AccessActionSecurityEvent = "security_event"
)

// BrowserInfo is the client environment captured with each access log
type BrowserInfo struct {
	Platform     string `json:"platform,omitempty"`
	Language     string `json:"language,omitempty"`
	ScreenWidth  int    `json:"screen_width,omitempty"`
	ScreenHeight int    `json:"screen_height,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Referrer     string `json:"referrer,omitempty"`
}

// AccessLog is one immutable audit record. Rows are inserted and read only.
type AccessLog struct {
	ID           uint                            `gorm:"primaryKey" json:"id"`
	UserID       *uint                           `gorm:"index:idx_access_logs_user_id" json:"user_id,omitempty"`
	UserEmail    *string                         `gorm:"size:255" json:"user_email,omitempty"`
	Action       string                          `gorm:"size:64;not null;index:idx_access_logs_action" json:"action"`
	ResourceType string                          `gorm:"size:64;not null;index:idx_access_logs_resource_type" json:"resource_type"`
	ResourceID   *string                         `gorm:"size:64" json:"resource_id,omitempty"`
	ResourceName *string                         `gorm:"size:255" json:"resource_name,omitempty"`
	Method       *string                         `gorm:"size:10" json:"method,omitempty"`
	URL          *string                         `gorm:"size:2048" json:"url,omitempty"`
	StatusCode   *int                            `json:"status_code,omitempty"`
	RequestBody  datatypes.JSON                  `json:"request_body,omitempty"`
	ResponseBody datatypes.JSON                  `json:"response_body,omitempty"`
	IPAddress    *string                         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string                         `gorm:"type:text" json:"user_agent,omitempty"`
	SessionID    string                          `gorm:"size:64;not null;index:idx_access_logs_session_id" json:"session_id"`
	BrowserInfo  datatypes.JSONType[BrowserInfo] `json:"browser_info"`
	Metadata     datatypes.JSONMap               `json:"metadata,omitempty"`
	CreatedAt    time.Time                       `gorm:"not null;index:idx_access_logs_created_at" json:"created_at"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}

// AccessLogFilter represents filter criteria for access log queries
type AccessLogFilter struct {
	UserID        *uint
	Action        *string
	ResourceType  *string
	ResourceID    *string
	SessionID     *string
	Search        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsSecurityEvent reports whether the record should surface on security dashboards
func (a *AccessLog) IsSecurityEvent() bool {
	switch a.Action {
	case AccessActionSecurityEvent, AccessActionLogin, AccessActionLogout:
		return true
	}
	return false
}
