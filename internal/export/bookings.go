package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"rentescrow/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var headers = []string{
	"ID", "User ID", "Listing Type", "Listing ID", "Status", "Payment Type",
	"Amount (NGN)", "Check-in", "Check-out", "Refund", "Release", "Payout Ref",
	"Created At", "Status Changed At",
}

// BookingSource provides the bookings for a report period.
type BookingSource interface {
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
}

// Exporter builds .xlsx booking reports.
type Exporter struct {
	bookings BookingSource
	dir      string
	logger   *zerolog.Logger
}

func NewExporter(bookings BookingSource, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{bookings: bookings, dir: dir, logger: logger}
}

// ExportToFile saves the report for [start, end] under the export dir and returns its path.
func (e *Exporter) ExportToFile(ctx context.Context, start, end time.Time) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Build(ctx, start, end)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx", models.FormatDate(start), models.FormatDate(end))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

// Export writes the report for [start, end] to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, start, end time.Time) error {
	f, err := e.Build(ctx, start, end)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteTo(w)
	return err
}

// Build assembles the workbook. The caller closes it.
func (e *Exporter) Build(ctx context.Context, start, end time.Time) (*excelize.File, error) {
	bookings, err := e.bookings.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	var total int64
	for i, b := range bookings {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &[]interface{}{
			b.ID,
			b.UserID,
			b.ListingType,
			b.ListingID,
			b.Status,
			deref(b.PaymentType),
			float64(b.Amount()) / 100,
			dateOrEmpty(b.CheckIn),
			dateOrEmpty(b.CheckOut),
			b.RefundStatus,
			b.ReleaseStatus,
			deref(b.PayoutReference),
			b.CreatedAt.UTC().Format("2006-01-02 15:04"),
			b.StatusChangedAt.UTC().Format("2006-01-02 15:04"),
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		if b.Status != models.StatusCancelled {
			total += b.Amount()
		}
	}

	// Итог по неотмененным бронированиям
	totalRow := len(bookings) + 3
	labelCell, _ := excelize.CoordinatesToCellName(6, totalRow)
	totalCell, _ := excelize.CoordinatesToCellName(7, totalRow)
	_ = f.SetCellValue(sheetName, labelCell, "Total")
	_ = f.SetCellValue(sheetName, totalCell, float64(total)/100)
	_ = f.SetCellStyle(sheetName, labelCell, totalCell, titleStyle)

	_ = f.SetColWidth(sheetName, "A", lastCol, 18)
	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return models.FormatDate(*t)
}
