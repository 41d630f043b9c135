package core

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/utils"
)

var exportHeader = []string{"datum", "prichod", "odchod"}

// ExportMonthCSV renders one instance's month as CSV. An empty month yields
// the header line only.
func ExportMonthCSV(db *gorm.DB, instanceID string, year, month int) ([]byte, error) {
	start, end := utils.MonthRange(year, month)
	var rows []model.Attendance
	err := db.Where("instance_id = ? AND date >= ? AND date < ?", instanceID, start, end).
		Order("date").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading attendance for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{row.Date.Format("2006-01-02"), deref(row.ArrivalTime), deref(row.DepartureTime)}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportMonthZIP bundles a CSV per ACTIVE, unmerged instance into one
// archive. Entry names are {slug}_{YYYY-MM}.csv; colliding slugs get a
// numeric suffix.
func ExportMonthZIP(db *gorm.DB, year, month int) ([]byte, error) {
	var instances []model.Instance
	err := db.Where("status = ? AND profile_instance_id IS NULL", model.StatusActive).
		Order("display_name").Find(&instances).Error
	if err != nil {
		return nil, fmt.Errorf("loading instances for export: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := make(map[string]int)
	for _, inst := range instances {
		name := ""
		if inst.DisplayName != nil {
			name = *inst.DisplayName
		}
		slug := utils.Slugify(name)
		if n := seen[slug]; n > 0 {
			seen[slug] = n + 1
			slug = fmt.Sprintf("%s_%d", slug, n+1)
		} else {
			seen[slug] = 1
		}

		data, err := ExportMonthCSV(db, inst.ID, year, month)
		if err != nil {
			return nil, err
		}
		entry, err := zw.Create(fmt.Sprintf("%s_%04d-%02d.csv", slug, year, month))
		if err != nil {
			return nil, fmt.Errorf("creating zip entry: %w", err)
		}
		if _, err := entry.Write(data); err != nil {
			return nil, fmt.Errorf("writing zip entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zip: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportMonthXLSX renders one instance's month as a spreadsheet.
func ExportMonthXLSX(db *gorm.DB, instanceID string, year, month int) ([]byte, error) {
	start, end := utils.MonthRange(year, month)
	var rows []model.Attendance
	err := db.Where("instance_id = ? AND date >= ? AND date < ?", instanceID, start, end).
		Order("date").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading attendance for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("writing sheet header: %w", err)
		}
	}
	for i, row := range rows {
		values := []string{row.Date.Format("2006-01-02"), deref(row.ArrivalTime), deref(row.DepartureTime)}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("writing sheet row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
