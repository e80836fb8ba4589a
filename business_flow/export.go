package businessflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/xuri/excelize/v2"
)

// exportSheet is one worksheet of an export workbook
type exportSheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// buildWorkbook writes sheets into an xlsx file, first sheet replacing the default one
func buildWorkbook(sheets ...exportSheet) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	used := map[string]bool{}
	for i, sheet := range sheets {
		base := sanitizeSheetName(sheet.Name)
		name := base
		for n := 2; used[name]; n++ {
			name = truncateSheetName(fmt.Sprintf("%s_%d", base, n))
		}
		used[name] = true

		if i == 0 {
			if err := xl.SetSheetName(xl.GetSheetName(0), name); err != nil {
				return nil, err
			}
		} else if _, err := xl.NewSheet(name); err != nil {
			return nil, err
		}

		header := sheet.Header
		if err := xl.SetSheetRow(name, "A1", &header); err != nil {
			return nil, err
		}
		for ri, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, ri+2)
			if err != nil {
				return nil, err
			}
			record := row
			if err := xl.SetSheetRow(name, cell, &record); err != nil {
				return nil, err
			}
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	return truncateSheetName(strings.TrimSpace(replacer.Replace(name)))
}

func truncateSheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	if name == "" {
		return "Sheet"
	}
	return name
}

func exportFileName(resource string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", resource, now.UTC().Format("20060102_150405"))
}

// exporter turns rows into an ExportFile, archives it when an archiver is set
// and records the export and upload actions
type exporter struct {
	archiver services.ReportArchiver
	logger   *services.AccessLogger
	now      func() time.Time
}

func (e *exporter) export(ctx context.Context, resource string, sheet exportSheet) (*dto.ExportFile, error) {
	data, err := buildWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	file := &dto.ExportFile{
		FileName:    exportFileName(resource, e.now()),
		ContentType: services.XLSXContentType,
		Data:        data,
		Rows:        len(sheet.Rows),
	}

	if e.logger != nil {
		e.logger.LogExport(ctx, resource, file.Rows, "xlsx")
	}

	if e.archiver != nil {
		location, err := e.archiver.Archive(ctx, file.FileName, file.ContentType, data)
		if err != nil {
			// the download still succeeds without an archived copy
			slog.WarnContext(ctx, "failed to archive export", "file", file.FileName, "error", err)
		} else {
			file.ArchivedAt = location
			if e.logger != nil {
				e.logger.LogUpload(ctx, resource, "", file.FileName, int64(len(data)))
			}
		}
	}
	return file, nil
}

func formatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatUintPtr(v *uint) string {
	if v == nil {
		return ""
	}
	return formatUint(*v)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func invoiceSheet(invoices []dto.InvoiceDTO) exportSheet {
	sheet := exportSheet{
		Name: "Invoices",
		Header: []string{
			"id", "invoice_number", "customer", "application", "plan", "status",
			"amount", "tax_rate", "tax_amount", "discount", "total", "currency",
			"issue_date", "due_date", "paid_date",
		},
	}
	for _, inv := range invoices {
		sheet.Rows = append(sheet.Rows, []string{
			formatUint(inv.ID),
			inv.InvoiceNumber,
			inv.CustomerName,
			inv.AppName,
			inv.PlanName,
			inv.Status,
			formatAmount(inv.Amount),
			formatAmount(inv.TaxRate),
			formatAmount(inv.TaxAmount),
			formatAmount(inv.DiscountAmount),
			formatAmount(inv.TotalAmount),
			inv.Currency,
			formatTime(inv.IssueDate),
			formatTime(inv.DueDate),
			formatTimePtr(inv.PaidDate),
		})
	}
	return sheet
}

func paymentSheet(payments []dto.PaymentDTO) exportSheet {
	sheet := exportSheet{
		Name: "Payments",
		Header: []string{
			"id", "reference", "customer", "invoice_number", "payment_method", "status",
			"amount", "refunded", "net", "currency", "payment_date",
		},
	}
	for _, p := range payments {
		sheet.Rows = append(sheet.Rows, []string{
			formatUint(p.ID),
			p.Reference,
			p.CustomerName,
			p.InvoiceNumber,
			p.PaymentMethod,
			p.DisplayStatus,
			formatAmount(p.Amount),
			formatAmount(p.RefundedAmount),
			formatAmount(p.NetAmount),
			p.Currency,
			formatTime(p.PaymentDate),
		})
	}
	return sheet
}

func accessLogSheet(logs []dto.AccessLogDTO) exportSheet {
	sheet := exportSheet{
		Name: "Access Logs",
		Header: []string{
			"id", "created_at", "user_id", "user_email", "action", "resource_type",
			"resource_id", "resource_name", "method", "url", "status_code", "ip_address", "session_id",
		},
	}
	for _, l := range logs {
		status := ""
		if l.StatusCode != nil {
			status = strconv.Itoa(*l.StatusCode)
		}
		sheet.Rows = append(sheet.Rows, []string{
			formatUint(l.ID),
			formatTime(l.CreatedAt),
			formatUintPtr(l.UserID),
			deref(l.UserEmail),
			l.Action,
			l.ResourceType,
			deref(l.ResourceID),
			deref(l.ResourceName),
			deref(l.Method),
			deref(l.URL),
			status,
			deref(l.IPAddress),
			l.SessionID,
		})
	}
	return sheet
}
