package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/model"
)

func (app *testApp) portalUserWithPassword(t *testing.T, email, password string, instanceID *string) {
	t.Helper()
	user, err := core.CreatePortalUser(app.db, core.PortalUserInput{
		Email: email, Name: "Test User", Role: model.RoleEmployee, InstanceID: instanceID,
	})
	require.NoError(t, err)
	token, err := core.CreateResetToken(app.db, user.ID)
	require.NoError(t, err)
	require.NoError(t, core.ConsumeResetToken(app.db, token, password))
}

func TestPortalLoginEndpoint(t *testing.T) {
	app := newTestApp(t)
	inst := app.activeInstance(t, "Portál Jana")
	app.portalUserWithPassword(t, "jana@hotel.cz", "jana-heslo-123", &inst.ID)

	w := app.do(t, http.MethodPost, "/api/v1/portal/login", gin.H{
		"email":    "jana@hotel.cz",
		"password": "jana-heslo-123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Token      string `json:"token"`
		InstanceID string `json:"instance_id"`
	}
	decodeJSON(t, w, &body)
	assert.Equal(t, inst.ID, body.InstanceID)

	// The issued token works as a regular bearer.
	w = app.do(t, http.MethodGet, "/api/v1/attendance?month=2025-06", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+body.Token)
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPortalLoginUniformFailures(t *testing.T) {
	app := newTestApp(t)
	inst := app.activeInstance(t, "Portál Petr")
	app.portalUserWithPassword(t, "petr@hotel.cz", "petr-heslo-123", &inst.ID)

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "wrong password", body: gin.H{"email": "petr@hotel.cz", "password": "spatne-heslo"}},
		{name: "unknown email", body: gin.H{"email": "neznamy@hotel.cz", "password": "petr-heslo-123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, http.MethodPost, "/api/v1/portal/login", tt.body, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "Invalid credentials")
		})
	}
}

func TestPortalResetEndpoint(t *testing.T) {
	app := newTestApp(t)
	inst := app.activeInstance(t, "Portál Eva")
	user, err := core.CreatePortalUser(app.db, core.PortalUserInput{
		Email: "eva@hotel.cz", Name: "Eva", Role: model.RoleEmployee, InstanceID: &inst.ID,
	})
	require.NoError(t, err)
	token, err := core.CreateResetToken(app.db, user.ID)
	require.NoError(t, err)

	w := app.do(t, http.MethodPost, "/api/v1/portal/reset", gin.H{
		"token":    token,
		"password": "nove-heslo-456",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Token is single use.
	w = app.do(t, http.MethodPost, "/api/v1/portal/reset", gin.H{
		"token":    token,
		"password": "jine-heslo-789",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The new password logs in.
	w = app.do(t, http.MethodPost, "/api/v1/portal/login", gin.H{
		"email":    "eva@hotel.cz",
		"password": "nove-heslo-456",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPortalResetValidation(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/v1/portal/reset", gin.H{
		"token":    "neexistujici",
		"password": "nejake-heslo-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Too short password fails binding.
	w = app.do(t, http.MethodPost, "/api/v1/portal/reset", gin.H{
		"token":    "cokoliv",
		"password": "kratke",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
