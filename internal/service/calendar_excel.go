package service

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"lys-mes/internal/domain"

	"github.com/xuri/excelize/v2"
)

const calendarSheet = "Calendar"

// CalendarExcelHeader 日历导入导出表头
var CalendarExcelHeader = []string{"Date", "Is Holiday", "Category", "Description"}

// generateCalendarExcel 生成日历 Excel
func generateCalendarExcel(days []domain.CalendarDay) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(calendarSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(calendarSheet, "A1", &CalendarExcelHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(calendarSheet, "A1", "D1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for col, width := range map[string]float64{"A": 14, "B": 12, "C": 16, "D": 30} {
		if err := f.SetColWidth(calendarSheet, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, d := range days {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		holiday := "No"
		if d.IsHoliday {
			holiday = "Yes"
		}
		row := []interface{}{d.DateKey(), holiday, d.Category, d.Description}
		if err := f.SetSheetRow(calendarSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// parseCalendarExcel 读取第一个工作表；表头按名称匹配，列顺序不限
func parseCalendarExcel(r io.Reader) ([]domain.CalendarDay, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse Excel file: %v", ErrInvalidArgument, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: Excel file has no sheets", ErrInvalidArgument)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return []domain.CalendarDay{}, nil
	}

	headerMap := make(map[string]int)
	for i, h := range rows[0] {
		headerMap[strings.TrimSpace(h)] = i
	}
	dateCol, ok := headerMap["Date"]
	if !ok {
		return nil, fmt.Errorf("%w: missing Date column", ErrInvalidArgument)
	}
	cell := func(row []string, name string) string {
		idx, ok := headerMap[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	days := make([]domain.CalendarDay, 0, len(rows)-1)
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if dateCol >= len(row) || strings.TrimSpace(row[dateCol]) == "" {
			continue
		}
		date, err := parseExcelDate(strings.TrimSpace(row[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidArgument, rowIdx+1, err)
		}
		days = append(days, domain.CalendarDay{
			Date:        date,
			IsHoliday:   parseYes(cell(row, "Is Holiday")),
			Category:    cell(row, "Category"),
			Description: cell(row, "Description"),
		})
	}
	return days, nil
}

var excelDateLayouts = []string{domain.DateLayout, "2006/01/02", "2006/1/2", "01-02-06"}

func parseExcelDate(v string) (time.Time, error) {
	for _, layout := range excelDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}

func parseYes(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "1", "是":
		return true
	}
	return false
}
