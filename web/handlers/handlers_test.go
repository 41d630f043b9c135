package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/core"
	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/security"
	"hcasc.cz/dagmar/web/middlewares"
)

const (
	testAdminUser     = "admin"
	testAdminPassword = "spravne-heslo-1"
	testSecret        = "test-session-secret"
)

type testApp struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dm, err := core.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, dm.AutoMigrate())
	t.Cleanup(func() { dm.Close() })

	hash, err := security.HashPassword(testAdminPassword)
	require.NoError(t, err)
	require.NoError(t, core.SeedAdminUser(dm.DB, testAdminUser, hash))

	sessionCfg := middlewares.AdminSessionConfig{
		CookieName:   "dagmar_admin_session",
		Secret:       []byte(testSecret),
		MaxAge:       12 * time.Hour,
		CookieSecure: false,
		RotateCSRF:   2 * time.Hour,
	}
	logger := zap.NewNop()
	noLimit := func(c *gin.Context) { c.Next() }

	r := gin.New()
	v1 := r.Group("/api/v1")
	RegisterInstanceRoutes(v1, dm.DB, noLimit, noLimit)
	RegisterPortalRoutes(v1, dm.DB, noLimit)

	bearer := v1.Group("", middlewares.InstanceAuthentication(dm.DB))
	RegisterAttendanceRoutes(bearer, dm.DB)

	RegisterAdminAuthRoutes(v1, dm.DB, sessionCfg, []byte(testSecret), logger, noLimit)

	admin := v1.Group("", middlewares.AdminAuthentication(sessionCfg), middlewares.CSRFGuard())
	RegisterAdminInstanceRoutes(admin, dm.DB, logger)
	RegisterAdminAttendanceRoutes(admin, dm.DB)
	RegisterAdminShiftPlanRoutes(admin, dm.DB)
	RegisterAdminExportRoutes(admin, dm.DB)
	RegisterAdminSettingsRoutes(admin, dm.DB, []byte(testSecret))
	RegisterAdminUserRoutes(admin, dm.DB, []byte(testSecret), "https://dagmar.test", logger)

	return &testApp{router: r, db: dm.DB}
}

func (app *testApp) do(t *testing.T, method, path string, body any, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

type adminSession struct {
	cookie    *http.Cookie
	csrfToken string
}

func (app *testApp) loginAdmin(t *testing.T) adminSession {
	t.Helper()
	w := app.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{
		"username": testAdminUser,
		"password": testAdminPassword,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.CSRFToken)

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "dagmar_admin_session" {
			session = c
		}
	}
	require.NotNil(t, session)
	return adminSession{cookie: session, csrfToken: body.CSRFToken}
}

func (s adminSession) apply(req *http.Request) {
	req.AddCookie(s.cookie)
	req.Header.Set(security.CSRFHeaderName, s.csrfToken)
}

func (app *testApp) activeInstance(t *testing.T, name string) *model.Instance {
	t.Helper()
	inst, err := core.RegisterInstance(app.db, core.RegisterInput{
		ClientType:        model.ClientAndroid,
		DeviceFingerprint: "fp-" + name + "-0123456789",
		DisplayName:       name,
	})
	require.NoError(t, err)
	activated, err := core.ActivateInstance(app.db, inst.ID, core.ActivateInput{})
	require.NoError(t, err)
	return activated
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
