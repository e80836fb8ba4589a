package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/amirphl/backoffice/utils"
)

// AccessLogListLimit caps how many audit records one listing returns
const AccessLogListLimit = 100

// AccessLogFlow reads the audit trail
type AccessLogFlow interface {
	ListAccessLogs(ctx context.Context, filter dto.AccessLogFilterRequest) ([]dto.AccessLogDTO, error)
	ExportAccessLogs(ctx context.Context, filter dto.AccessLogFilterRequest) (*dto.ExportFile, error)
}

// AccessLogFlowImpl implements the access log business flow
type AccessLogFlowImpl struct {
	repo         repository.AccessLogRepository
	accessLogger *services.AccessLogger
	exporter     *exporter
}

// NewAccessLogFlow creates a new access log flow instance. archiver may be nil.
func NewAccessLogFlow(repo repository.AccessLogRepository, accessLogger *services.AccessLogger, archiver services.ReportArchiver) AccessLogFlow {
	return &AccessLogFlowImpl{
		repo:         repo,
		accessLogger: accessLogger,
		exporter:     &exporter{archiver: archiver, logger: accessLogger, now: utils.UTCNow},
	}
}

func accessLogFilter(req dto.AccessLogFilterRequest) (models.AccessLogFilter, string, error) {
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return models.AccessLogFilter{}, "", ErrStartDateAfterEndDate
	}
	filter := models.AccessLogFilter{
		UserID:        req.UserID,
		Action:        req.Action,
		ResourceType:  req.ResourceType,
		CreatedAfter:  req.StartDate,
		CreatedBefore: req.EndDate,
	}
	search := ""
	if req.Search != nil {
		search = strings.TrimSpace(*req.Search)
		if search != "" {
			filter.Search = &search
		}
	}
	return filter, search, nil
}

// ListAccessLogs returns the newest matching records, at most AccessLogListLimit
func (f *AccessLogFlowImpl) ListAccessLogs(ctx context.Context, req dto.AccessLogFilterRequest) (result []dto.AccessLogDTO, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_ACCESS_LOGS_FAILED", "Failed to list access logs", err)
		}
	}()

	filter, search, err := accessLogFilter(req)
	if err != nil {
		return nil, err
	}
	logs, err := f.repo.ListRecent(ctx, filter, AccessLogListLimit)
	if err != nil {
		return nil, err
	}
	if search != "" && f.accessLogger != nil {
		f.accessLogger.LogSearch(ctx, "access_log", search, len(logs))
	}
	return mapSlice(logs, ToAccessLogDTO), nil
}

// ExportAccessLogs renders the filtered audit trail as xlsx
func (f *AccessLogFlowImpl) ExportAccessLogs(ctx context.Context, req dto.AccessLogFilterRequest) (*dto.ExportFile, error) {
	filter, _, err := accessLogFilter(req)
	if err != nil {
		return nil, NewBusinessError("EXPORT_ACCESS_LOGS_FAILED", "Failed to export access logs", err)
	}
	logs, err := f.repo.ListRecent(ctx, filter, AccessLogListLimit)
	if err != nil {
		return nil, NewBusinessError("EXPORT_ACCESS_LOGS_FAILED", "Failed to export access logs", err)
	}
	file, err := f.exporter.export(ctx, "access_logs", accessLogSheet(mapSlice(logs, ToAccessLogDTO)))
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return file, nil
}
