// Package export renders document listings as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName = "Documents"
	// #,##0.00
	moneyFormat = 4
)

type column struct {
	header string
	width  float64
}

var columns = []column{
	{"Document ID", 38},
	{"Filename", 30},
	{"Status", 12},
	{"Vendor", 28},
	{"Invoice Number", 18},
	{"Invoice Date", 13},
	{"Total", 14},
	{"VAT", 14},
	{"VAT %", 8},
	{"IBAN", 24},
	{"External Document ID", 22},
	{"External Booking ID", 22},
	{"Error", 48},
	{"Created At", 20},
}

// XLSXExporter implements port.DocumentExporter with excelize
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new spreadsheet exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) FileExtension() string {
	return ".xlsx"
}

// Export writes one row per document. Amounts are stored as numeric cells
// written from their decimal text so no binary rounding is introduced.
func (e *XLSXExporter) Export(ctx context.Context, w io.Writer, docs []*entity.Document) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return fmt.Errorf("failed to create money style: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col.header); err != nil {
			return err
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, name, name, col.width); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for i, doc := range docs {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writeRow(f, i+2, doc, moneyStyle); err != nil {
			return fmt.Errorf("failed to write row for document %s: %w", doc.ID, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	e.logger.Debug("Exported documents", zap.Int("rows", len(docs)))
	return nil
}

func writeRow(f *excelize.File, row int, doc *entity.Document, moneyStyle int) error {
	data := doc.ExtractedData
	if data == nil {
		data = &entity.ExtractedData{}
	}

	values := []interface{}{
		doc.ID,
		doc.OriginalFilename,
		doc.Status,
		entity.StringValue(data.VendorName),
		entity.StringValue(data.InvoiceNumber),
		formatDate(data.InvoiceDate),
		nil, // total
		nil, // VAT
		nil, // VAT %
		entity.StringValue(data.IBAN),
		entity.StringValue(doc.ExternalDocumentID),
		entity.StringValue(doc.ExternalBookingID),
		entity.StringValue(doc.ErrorMessage),
		doc.CreatedAt.UTC().Format(time.RFC3339),
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}

	amounts := []struct {
		col   int
		value decimal.NullDecimal
		money bool
	}{
		{7, data.TotalAmount, true},
		{8, data.VATAmount, true},
		{9, data.VATPercentage, false},
	}
	for _, a := range amounts {
		if !a.value.Valid {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(a.col, row)
		text := a.value.Decimal.String()
		if a.money {
			text = a.value.Decimal.StringFixed(2)
		}
		if err := f.SetCellDefault(sheetName, cell, text); err != nil {
			return err
		}
		if a.money {
			if err := f.SetCellStyle(sheetName, cell, cell, moneyStyle); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

var _ port.DocumentExporter = (*XLSXExporter)(nil)
