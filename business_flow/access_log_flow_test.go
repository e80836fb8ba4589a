package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	testhelpers "github.com/amirphl/backoffice/testing"
	"github.com/amirphl/backoffice/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccessLogs(t *testing.T, repo repository.AccessLogRepository, n int, email string, start time.Time) {
	t.Helper()
	logs := make([]*models.AccessLog, 0, n)
	for i := range n {
		logs = append(logs, &models.AccessLog{
			UserEmail:    utils.ToPtr(email),
			Action:       models.AccessActionRead,
			ResourceType: "invoice",
			SessionID:    "seed",
			CreatedAt:    start.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, repo.SaveBatch(context.Background(), logs))
}

func TestAccessLogFlow_ListCapsAndOrders(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	repo := repository.NewAccessLogRepository(db.DB)
	flow := NewAccessLogFlow(repo, nil, nil)

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	seedAccessLogs(t, repo, AccessLogListLimit+5, "ops@example.com", start)

	logs, err := flow.ListAccessLogs(context.Background(), dto.AccessLogFilterRequest{})
	require.NoError(t, err)
	require.Len(t, logs, AccessLogListLimit)
	assert.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))
	assert.True(t, logs[0].CreatedAt.Equal(start.Add(time.Duration(AccessLogListLimit+4)*time.Minute)))
}

func TestAccessLogFlow_SearchIsAudited(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	repo := repository.NewAccessLogRepository(db.DB)
	logger := services.NewAccessLogger(repo, nil, nil, services.AccessLoggerOptions{Enabled: true})
	flow := NewAccessLogFlow(repo, logger, nil)

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	seedAccessLogs(t, repo, 3, "alice@example.com", start)
	seedAccessLogs(t, repo, 2, "bob@example.com", start)

	search := "  ALICE "
	logs, err := flow.ListAccessLogs(context.Background(), dto.AccessLogFilterRequest{Search: &search})
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	logger.Wait()
	action := models.AccessActionSearch
	recorded, err := repo.ListRecent(context.Background(), models.AccessLogFilter{Action: &action}, 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "access_log", recorded[0].ResourceType)
	assert.Equal(t, "ALICE", recorded[0].Metadata["query"])
}

func TestAccessLogFlow_RejectsInvertedRange(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	flow := NewAccessLogFlow(repository.NewAccessLogRepository(db.DB), nil, nil)

	end := time.Now().UTC()
	begin := end.Add(time.Hour)
	_, err := flow.ListAccessLogs(context.Background(), dto.AccessLogFilterRequest{StartDate: &begin, EndDate: &end})
	assert.ErrorIs(t, err, ErrStartDateAfterEndDate)
	assert.True(t, IsValidationError(err))
}

func TestAccessLogFlow_Export(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	repo := repository.NewAccessLogRepository(db.DB)
	flow := NewAccessLogFlow(repo, nil, nil)
	seedAccessLogs(t, repo, 4, "ops@example.com", time.Now().UTC().Add(-time.Hour))

	file, err := flow.ExportAccessLogs(context.Background(), dto.AccessLogFilterRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, file.Rows)
	assert.NotEmpty(t, file.Data)
	assert.Empty(t, file.ArchivedAt)
}
