package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/amirphl/backoffice/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/datatypes"
)

var accessLogWrites = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "backoffice_access_log_writes_total",
		Help: "Access log write attempts partitioned by result",
	},
	[]string{"result"},
)

// AccessLogEntry describes one action to record
type AccessLogEntry struct {
	Action       string
	ResourceType string
	ResourceID   string
	ResourceName string
	Method       string
	URL          string
	StatusCode   int
	RequestBody  any
	ResponseBody any
	Metadata     map[string]any
}

// AccessLoggerOptions configures an AccessLogger
type AccessLoggerOptions struct {
	Enabled      bool
	WriteTimeout time.Duration
	Now          func() time.Time
}

// AccessLogger records user actions without blocking or failing the caller.
// Each instance carries one session id for its lifetime.
type AccessLogger struct {
	repo      repository.AccessLogRepository
	resolver  IPResolver
	publisher AuditPublisher

	enabled      bool
	sessionID    string
	writeTimeout time.Duration
	now          func() time.Time

	mu   sync.Mutex
	last time.Time

	// pendingMu orders wg.Add against Shutdown's wg.Wait
	pendingMu sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewAccessLogger builds a logger. resolver and publisher may be nil.
func NewAccessLogger(repo repository.AccessLogRepository, resolver IPResolver, publisher AuditPublisher, opts AccessLoggerOptions) *AccessLogger {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AccessLogger{
		repo:         repo,
		resolver:     resolver,
		publisher:    publisher,
		enabled:      opts.Enabled,
		sessionID:    uuid.NewString(),
		writeTimeout: opts.WriteTimeout,
		now:          opts.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SessionID is stable for the lifetime of the logger
func (l *AccessLogger) SessionID() string {
	return l.sessionID
}

// stamp returns a creation time that never goes backwards for sequential calls
func (l *AccessLogger) stamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.now().UTC()
	if t.Before(l.last) {
		t = l.last
	}
	l.last = t
	return t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	switch b := v.(type) {
	case []byte:
		if json.Valid(b) {
			return datatypes.JSON(b)
		}
		v = string(b)
	case json.RawMessage:
		return datatypes.JSON(b)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// build snapshots the request context into a record
func (l *AccessLogger) build(ctx context.Context, entry AccessLogEntry) *models.AccessLog {
	info := utils.ClientInfoFromContext(ctx)

	method, url := entry.Method, entry.URL
	if method == "" {
		method = info.Method
	}
	if url == "" {
		url = info.URL
	}

	record := &models.AccessLog{
		UserID:       info.UserID,
		UserEmail:    optional(info.UserEmail),
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   optional(entry.ResourceID),
		ResourceName: optional(entry.ResourceName),
		Method:       optional(method),
		URL:          optional(url),
		RequestBody:  toJSON(entry.RequestBody),
		ResponseBody: toJSON(entry.ResponseBody),
		IPAddress:    optional(info.IPAddress),
		UserAgent:    optional(info.UserAgent),
		SessionID:    l.sessionID,
		BrowserInfo: datatypes.NewJSONType(models.BrowserInfo{
			Platform:     info.Platform,
			Language:     info.Language,
			ScreenWidth:  info.ScreenWidth,
			ScreenHeight: info.ScreenHeight,
			Timezone:     info.Timezone,
			Referrer:     info.Referrer,
		}),
		CreatedAt: l.stamp(),
	}
	if entry.StatusCode != 0 {
		code := entry.StatusCode
		record.StatusCode = &code
	}

	metadata := datatypes.JSONMap{}
	for k, v := range entry.Metadata {
		metadata[k] = v
	}
	if info.RequestID != "" {
		metadata["request_id"] = info.RequestID
	}
	if len(metadata) > 0 {
		record.Metadata = metadata
	}
	return record
}

// LogAction records entry in the background. It never blocks on I/O and never fails.
// Entries arriving after Shutdown are dropped.
func (l *AccessLogger) LogAction(ctx context.Context, entry AccessLogEntry) {
	if l == nil || !l.enabled {
		return
	}

	record := l.build(ctx, entry)

	l.pendingMu.Lock()
	if l.closed {
		l.pendingMu.Unlock()
		accessLogWrites.WithLabelValues("dropped").Inc()
		return
	}
	l.wg.Add(1)
	l.pendingMu.Unlock()

	utils.AuditMarkFromContext(ctx).Set()
	go l.persist(record)
}

func (l *AccessLogger) persist(record *models.AccessLog) {
	defer l.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			accessLogWrites.WithLabelValues("panic").Inc()
			slog.Warn("Access log write panicked", "panic", r, "action", record.Action)
		}
	}()

	ctx, cancel := context.WithTimeout(l.ctx, l.writeTimeout)
	defer cancel()

	if record.IPAddress == nil && l.resolver != nil {
		if ip, err := l.resolver.ResolveIP(ctx); err == nil {
			record.IPAddress = &ip
		} else {
			slog.Debug("Access log IP lookup failed", "error", err)
		}
	}

	if err := l.repo.Save(ctx, record); err != nil {
		accessLogWrites.WithLabelValues("failed").Inc()
		slog.Warn("Failed to write access log", "error", err, "action", record.Action, "resource_type", record.ResourceType)
		return
	}
	accessLogWrites.WithLabelValues("saved").Inc()

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, record); err != nil {
			accessLogWrites.WithLabelValues("publish_failed").Inc()
			slog.Warn("Failed to publish access log", "error", err, "id", record.ID)
		}
	}
}

// Wait blocks until every pending record has been handled
func (l *AccessLogger) Wait() {
	l.wg.Wait()
}

// Shutdown stops accepting records and flushes pending ones, abandoning them
// once ctx is done. It is safe to call more than once.
func (l *AccessLogger) Shutdown(ctx context.Context) {
	l.pendingMu.Lock()
	if l.closed {
		l.pendingMu.Unlock()
		return
	}
	l.closed = true
	l.pendingMu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Access log flush abandoned", "error", ctx.Err())
	}
	l.cancel()
	if l.publisher != nil {
		l.publisher.Close()
	}
}

func (l *AccessLogger) LogCreate(ctx context.Context, resourceType, resourceID, resourceName string, details map[string]any) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionCreate, ResourceType: resourceType, ResourceID: resourceID, ResourceName: resourceName, Metadata: details})
}

func (l *AccessLogger) LogRead(ctx context.Context, resourceType, resourceID string, details map[string]any) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionRead, ResourceType: resourceType, ResourceID: resourceID, Metadata: details})
}

func (l *AccessLogger) LogUpdate(ctx context.Context, resourceType, resourceID, resourceName string, changes map[string]any) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionUpdate, ResourceType: resourceType, ResourceID: resourceID, ResourceName: resourceName, Metadata: map[string]any{"changes": changes}})
}

func (l *AccessLogger) LogDelete(ctx context.Context, resourceType, resourceID, resourceName string) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionDelete, ResourceType: resourceType, ResourceID: resourceID, ResourceName: resourceName})
}

// LogLogin records a login attempt; email identifies the actor before a session exists
func (l *AccessLogger) LogLogin(ctx context.Context, email string, success bool, details map[string]any) {
	ctx = withActorEmail(ctx, email)
	metadata := map[string]any{"success": success}
	for k, v := range details {
		metadata[k] = v
	}
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionLogin, ResourceType: "auth", ResourceName: email, Metadata: metadata})
}

func (l *AccessLogger) LogLogout(ctx context.Context, email string) {
	l.LogAction(withActorEmail(ctx, email), AccessLogEntry{Action: models.AccessActionLogout, ResourceType: "auth", ResourceName: email})
}

func (l *AccessLogger) LogApprove(ctx context.Context, resourceType, resourceID, resourceName string, details map[string]any) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionApprove, ResourceType: resourceType, ResourceID: resourceID, ResourceName: resourceName, Metadata: details})
}

func (l *AccessLogger) LogReject(ctx context.Context, resourceType, resourceID, resourceName, reason string) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionReject, ResourceType: resourceType, ResourceID: resourceID, ResourceName: resourceName, Metadata: map[string]any{"reason": reason}})
}

func (l *AccessLogger) LogExport(ctx context.Context, resourceType string, recordCount int, format string) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionExport, ResourceType: resourceType, Metadata: map[string]any{"record_count": recordCount, "format": format}})
}

func (l *AccessLogger) LogImport(ctx context.Context, resourceType string, recordCount int) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionImport, ResourceType: resourceType, Metadata: map[string]any{"record_count": recordCount}})
}

func (l *AccessLogger) LogSearch(ctx context.Context, resourceType, query string, resultCount int) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionSearch, ResourceType: resourceType, Metadata: map[string]any{"query": query, "result_count": resultCount}})
}

func (l *AccessLogger) LogDownload(ctx context.Context, resourceType, resourceID, fileName string) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionDownload, ResourceType: resourceType, ResourceID: resourceID, ResourceName: fileName})
}

func (l *AccessLogger) LogUpload(ctx context.Context, resourceType, resourceID, fileName string, size int64) {
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionUpload, ResourceType: resourceType, ResourceID: resourceID, ResourceName: fileName, Metadata: map[string]any{"size": size}})
}

func (l *AccessLogger) LogError(ctx context.Context, resourceType string, err error, details map[string]any) {
	metadata := map[string]any{}
	for k, v := range details {
		metadata[k] = v
	}
	if err != nil {
		metadata["error"] = err.Error()
	}
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionError, ResourceType: resourceType, Metadata: metadata})
}

func (l *AccessLogger) LogSecurityEvent(ctx context.Context, event string, details map[string]any) {
	metadata := map[string]any{"event": event}
	for k, v := range details {
		metadata[k] = v
	}
	l.LogAction(ctx, AccessLogEntry{Action: models.AccessActionSecurityEvent, ResourceType: "security", Metadata: metadata})
}

func withActorEmail(ctx context.Context, email string) context.Context {
	info := utils.ClientInfoFromContext(ctx)
	if info.UserEmail == "" {
		info.UserEmail = email
	}
	return utils.WithClientInfo(ctx, info)
}

// IDString formats a numeric id for ResourceID fields
func IDString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
