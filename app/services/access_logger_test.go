package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	testhelpers "github.com/amirphl/backoffice/testing"
	"github.com/amirphl/backoffice/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	calls atomic.Int32
	ip    string
	err   error
}

func (r *stubResolver) ResolveIP(context.Context) (string, error) {
	r.calls.Add(1)
	return r.ip, r.err
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []*models.AccessLog
	closed  bool
}

func (p *recordingPublisher) Publish(_ context.Context, entry *models.AccessLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return nil
}

func (p *recordingPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

type failingAccessLogRepo struct {
	repository.AccessLogRepository
}

func (failingAccessLogRepo) Save(context.Context, *models.AccessLog) error {
	return errors.New("database unavailable")
}

type panickingAccessLogRepo struct {
	repository.AccessLogRepository
}

func (panickingAccessLogRepo) Save(context.Context, *models.AccessLog) error {
	panic("boom")
}

func newLoggerWithDB(t *testing.T, resolver IPResolver, publisher AuditPublisher) (*AccessLogger, repository.AccessLogRepository) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	repo := repository.NewAccessLogRepository(db.DB)
	logger := NewAccessLogger(repo, resolver, publisher, AccessLoggerOptions{Enabled: true, WriteTimeout: 5 * time.Second})
	return logger, repo
}

func requestContext() context.Context {
	userID := uint(42)
	return utils.WithClientInfo(context.Background(), utils.ClientInfo{
		IPAddress:   "10.1.2.3",
		UserAgent:   "unit-test",
		RequestID:   "req-1",
		Platform:    "Linux",
		Language:    "en-US",
		ScreenWidth: 1920,
		Timezone:    "UTC",
		Method:      "POST",
		URL:         "/api/v1/finance/invoices",
		UserID:      &userID,
		UserEmail:   "staff@example.com",
	})
}

func TestAccessLogger_LogActionPersists(t *testing.T) {
	publisher := &recordingPublisher{}
	logger, repo := newLoggerWithDB(t, nil, publisher)
	ctx := requestContext()

	logger.LogCreate(ctx, "invoice", "7", "INV-202403-000001", map[string]any{"total": 110.0})
	logger.Wait()

	logs, err := repo.ListRecent(context.Background(), models.AccessLogFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, models.AccessActionCreate, entry.Action)
	assert.Equal(t, "invoice", entry.ResourceType)
	assert.Equal(t, "7", utils.Deref(entry.ResourceID))
	assert.Equal(t, "INV-202403-000001", utils.Deref(entry.ResourceName))
	assert.Equal(t, uint(42), utils.Deref(entry.UserID))
	assert.Equal(t, "staff@example.com", utils.Deref(entry.UserEmail))
	assert.Equal(t, "10.1.2.3", utils.Deref(entry.IPAddress))
	assert.Equal(t, "POST", utils.Deref(entry.Method))
	assert.Equal(t, logger.SessionID(), entry.SessionID)
	assert.Equal(t, "Linux", entry.BrowserInfo.Data().Platform)
	assert.Equal(t, 1920, entry.BrowserInfo.Data().ScreenWidth)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	// JSONMap decodes numbers with UseNumber
	assert.Equal(t, json.Number("110"), entry.Metadata["total"])

	publisher.mu.Lock()
	assert.Len(t, publisher.entries, 1)
	publisher.mu.Unlock()
}

func TestAccessLogger_Disabled(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	repo := repository.NewAccessLogRepository(db.DB)
	logger := NewAccessLogger(repo, nil, nil, AccessLoggerOptions{Enabled: false})

	logger.LogRead(requestContext(), "customer", "1", nil)
	logger.Wait()

	count, err := repo.Count(context.Background(), models.AccessLogFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAccessLogger_NilLoggerIsNoop(t *testing.T) {
	var logger *AccessLogger
	assert.NotPanics(t, func() {
		logger.LogDelete(context.Background(), "invoice", "1", "x")
	})
}

func TestAccessLogger_ResolvesIPOnlyWhenMissing(t *testing.T) {
	resolver := &stubResolver{ip: "203.0.113.9"}
	logger, repo := newLoggerWithDB(t, resolver, nil)

	logger.LogRead(requestContext(), "customer", "1", nil)
	logger.LogSearch(context.Background(), "customer", "acme", 3)
	logger.Wait()

	assert.Equal(t, int32(1), resolver.calls.Load())

	logs, err := repo.ListRecent(context.Background(), models.AccessLogFilter{Action: utils.ToPtr(models.AccessActionSearch)}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "203.0.113.9", utils.Deref(logs[0].IPAddress))
}

func TestAccessLogger_ResolverFailureOmitsIP(t *testing.T) {
	resolver := &stubResolver{err: errors.New("lookup timed out")}
	logger, repo := newLoggerWithDB(t, resolver, nil)

	logger.LogSecurityEvent(context.Background(), "account_locked", map[string]any{"email": "a@example.com"})
	logger.Wait()

	logs, err := repo.ListRecent(context.Background(), models.AccessLogFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].IPAddress)
	assert.Equal(t, "account_locked", logs[0].Metadata["event"])
}

func TestAccessLogger_FailuresNeverPropagate(t *testing.T) {
	failedBefore := testutil.ToFloat64(accessLogWrites.WithLabelValues("failed"))
	panicsBefore := testutil.ToFloat64(accessLogWrites.WithLabelValues("panic"))

	failing := NewAccessLogger(failingAccessLogRepo{}, nil, nil, AccessLoggerOptions{Enabled: true})
	panicking := NewAccessLogger(panickingAccessLogRepo{}, nil, nil, AccessLoggerOptions{Enabled: true})

	assert.NotPanics(t, func() {
		failing.LogUpdate(context.Background(), "invoice", "1", "x", map[string]any{"status": "paid"})
		panicking.LogUpdate(context.Background(), "invoice", "1", "x", nil)
		failing.Wait()
		panicking.Wait()
	})

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(accessLogWrites.WithLabelValues("failed")))
	assert.Equal(t, panicsBefore+1, testutil.ToFloat64(accessLogWrites.WithLabelValues("panic")))
}

func TestAccessLogger_TimestampsNeverDecrease(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	var i atomic.Int32
	now := func() time.Time {
		n := int(i.Add(1)) - 1
		return ticks[n%len(ticks)]
	}

	db := testhelpers.NewTestDB(t)
	repo := repository.NewAccessLogRepository(db.DB)
	logger := NewAccessLogger(repo, nil, nil, AccessLoggerOptions{Enabled: true, Now: now})

	for range 3 {
		logger.LogRead(requestContext(), "customer", "1", nil)
	}
	logger.Wait()

	logs, err := repo.ListRecent(context.Background(), models.AccessLogFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	// newest first
	assert.True(t, base.Add(time.Second).Equal(logs[0].CreatedAt))
	assert.True(t, base.Equal(logs[1].CreatedAt))
	assert.True(t, base.Equal(logs[2].CreatedAt))
}

func TestAccessLogger_LoginCarriesEmail(t *testing.T) {
	logger, repo := newLoggerWithDB(t, nil, nil)

	logger.LogLogin(context.Background(), "new@example.com", false, map[string]any{"reason": "invalid_password"})
	logger.Wait()

	logs, err := repo.ListRecent(context.Background(), models.AccessLogFilter{Action: utils.ToPtr(models.AccessActionLogin)}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "new@example.com", utils.Deref(logs[0].UserEmail))
	assert.Equal(t, false, logs[0].Metadata["success"])
	assert.Equal(t, "invalid_password", logs[0].Metadata["reason"])
}

func TestAccessLogger_ShutdownClosesPublisher(t *testing.T) {
	publisher := &recordingPublisher{}
	logger, _ := newLoggerWithDB(t, nil, publisher)

	logger.LogLogout(requestContext(), "staff@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Shutdown(ctx)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.True(t, publisher.closed)
	assert.Len(t, publisher.entries, 1)

	// writes after shutdown are dropped
	logger.LogLogout(requestContext(), "staff@example.com")
	logger.Wait()
}

func TestAccessLogger_LogRacingShutdownIsFlushedOrDropped(t *testing.T) {
	logger, repo := newLoggerWithDB(t, nil, nil)
	droppedBefore := testutil.ToFloat64(accessLogWrites.WithLabelValues("dropped"))

	const writers = 50
	start := make(chan struct{})
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			logger.LogCreate(requestContext(), "customers", "1", "Acme", nil)
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	close(start)
	logger.Shutdown(ctx)
	wg.Wait()
	logger.Shutdown(ctx)

	dropped := int(testutil.ToFloat64(accessLogWrites.WithLabelValues("dropped")) - droppedBefore)
	logs, err := repo.ListRecent(context.Background(), models.AccessLogFilter{}, 2*writers)
	require.NoError(t, err)
	assert.Equal(t, writers, len(logs)+dropped, "every entry is either stored or counted as dropped")
}

func TestAccessLogger_MarksRequestAsAudited(t *testing.T) {
	logger, _ := newLoggerWithDB(t, nil, nil)

	mark := &utils.AuditMark{}
	ctx := utils.WithAuditMark(requestContext(), mark)
	assert.False(t, mark.IsSet())

	logger.LogApprove(ctx, "user", "3", "pending@example.com", nil)
	logger.Wait()
	assert.True(t, mark.IsSet())

	disabled := NewAccessLogger(nil, nil, nil, AccessLoggerOptions{Enabled: false})
	other := &utils.AuditMark{}
	disabled.LogApprove(utils.WithAuditMark(requestContext(), other), "user", "3", "pending@example.com", nil)
	assert.False(t, other.IsSet())
}
