// Package export writes batch results to spreadsheets.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

const (
	sheetName      = "Sheet1"
	fileTimeLayout = "1504-02-01-2006"
	headerColor    = "FFFF00"
)

var headers = []string{"STT", "Số thuê bao", "Số tiền", "Ghi chú"}

type XLSXExporter struct {
	now func() time.Time
	dir string
}

func New(dir string) *XLSXExporter {
	return &XLSXExporter{dir: dir, now: time.Now}
}

// Export writes rows to <dir>/<label>/<HHMM-DD-MM-YYYY>.xlsx and returns the path.
func (e *XLSXExporter) Export(ctx context.Context, label string, rows []outcome.Row,
) (string, error) {
	if len(rows) == 0 {
		return "", serviceerrs.ErrEmptyExport
	}

	dir := filepath.Join(e.dir, label)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create export dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, e.now().Format(fileTimeLayout)+".xlsx")

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.FromContext(ctx).LogAttrs(ctx, slog.LevelWarn, "failed to close workbook",
				slog.Any(model.KeyLoggerError, err))
		}
	}()

	if err := writeHeader(f); err != nil {
		return "", err
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, i+1, row); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	logger.FromContext(ctx).LogAttrs(ctx, slog.LevelInfo, "batch exported",
		slog.String("path", path),
		slog.Int("rows", len(rows)),
	)
	return path, nil
}

func writeHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("bad header cell: %w", err)
		}
		if err = f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header %s: %w", h, err)
		}
		if err = f.SetCellStyle(sheetName, cell, cell, style); err != nil {
			return fmt.Errorf("failed to style header %s: %w", h, err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, line, index int, row outcome.Row) error {
	values := []any{index, row.Code, amountValue(row.Amount), row.Status}
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, line)
		if err != nil {
			return fmt.Errorf("bad cell: %w", err)
		}
		if err = f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("failed to write row %d: %w", index, err)
		}
	}
	return nil
}

// amountValue keeps numbers numeric in the sheet and raw text as text.
func amountValue(a model.Amount) any {
	if v, ok := a.Int64(); ok {
		return v
	}
	return a.Raw()
}
