package core

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportMonthCSV(t *testing.T) {
	db := openTestDB(t)
	inst := activeTestInstance(t, db, "Jiří Novák")
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	eight, sixteen := "08:00", "16:30"
	require.NoError(t, UpsertAttendance(db, inst.ID, day, &eight, &sixteen))
	open := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, UpsertAttendance(db, inst.ID, open, &eight, nil))

	data, err := ExportMonthCSV(db, inst.ID, 2025, 3)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"datum", "prichod", "odchod"}, records[0])
	assert.Equal(t, []string{"2025-03-10", "08:00", "16:30"}, records[1])
	assert.Equal(t, []string{"2025-03-11", "08:00", ""}, records[2])
}

func TestExportMonthCSVEmptyMonth(t *testing.T) {
	db := openTestDB(t)
	inst := activeTestInstance(t, db, "prazdny")

	data, err := ExportMonthCSV(db, inst.ID, 2025, 1)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"datum", "prichod", "odchod"}, records[0])
}

func TestExportMonthZIP(t *testing.T) {
	db := openTestDB(t)
	a := activeTestInstance(t, db, "Jana Malá")
	b := activeTestInstance(t, db, "Petr Velký")
	merged := activeTestInstance(t, db, "Jana Malá mobil")
	require.NoError(t, MergeInstances(db, a.ID, []string{merged.ID}))

	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	seven := "07:00"
	require.NoError(t, UpsertAttendance(db, a.ID, day, &seven, nil))
	require.NoError(t, UpsertAttendance(db, b.ID, day, &seven, nil))

	data, err := ExportMonthZIP(db, 2025, 4)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	// Merged sources are excluded from the bulk export.
	assert.ElementsMatch(t, []string{"jana_mala_2025-04.csv", "petr_velky_2025-04.csv"}, names)
}

func TestExportMonthXLSX(t *testing.T) {
	db := openTestDB(t)
	inst := activeTestInstance(t, db, "tabulka")
	day := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	nine := "09:00"
	require.NoError(t, UpsertAttendance(db, inst.ID, day, &nine, nil))

	data, err := ExportMonthXLSX(db, inst.ID, 2025, 5)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"datum", "prichod", "odchod"}, rows[0])
	assert.Equal(t, "2025-05-02", rows[1][0])
	assert.Equal(t, "09:00", rows[1][1])
}
