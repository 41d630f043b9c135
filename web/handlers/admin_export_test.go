package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcasc.cz/dagmar/core"
)

func TestAdminExportCSV(t *testing.T) {
	app := newTestApp(t)
	session := app.loginAdmin(t)
	inst := app.activeInstance(t, "Věra Čistá")

	day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	eight := "08:00"
	require.NoError(t, core.UpsertAttendance(app.db, inst.ID, day, &eight, nil))

	w := app.do(t, http.MethodGet,
		"/api/v1/admin/export?month=2025-03&instance_id="+inst.ID, nil,
		func(req *http.Request) { req.AddCookie(session.cookie) })
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "vera_cista_2025-03.csv")
	assert.Contains(t, w.Body.String(), "datum,prichod,odchod")
	assert.Contains(t, w.Body.String(), "2025-03-05,08:00,")
}

func TestAdminExportBulkZip(t *testing.T) {
	app := newTestApp(t)
	session := app.loginAdmin(t)
	app.activeInstance(t, "Jedna")
	app.activeInstance(t, "Dva")

	w := app.do(t, http.MethodGet, "/api/v1/admin/export?month=2025-03&bulk=true", nil,
		func(req *http.Request) { req.AddCookie(session.cookie) })
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "export_2025-03.zip")
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestAdminExportValidation(t *testing.T) {
	app := newTestApp(t)
	session := app.loginAdmin(t)

	w := app.do(t, http.MethodGet, "/api/v1/admin/export?month=not-a-month", nil,
		func(req *http.Request) { req.AddCookie(session.cookie) })
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/admin/export?month=2025-03", nil,
		func(req *http.Request) { req.AddCookie(session.cookie) })
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/admin/export?month=2025-03&instance_id=chybi", nil,
		func(req *http.Request) { req.AddCookie(session.cookie) })
	assert.Equal(t, http.StatusNotFound, w.Code)
}
