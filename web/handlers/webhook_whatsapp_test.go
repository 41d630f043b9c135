package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newWebhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWhatsAppRoutes(r.Group("/api/v1"), "overovaci-token", "", "", "", zap.NewNop())
	return r
}

func TestWhatsAppVerifyChallenge(t *testing.T) {
	r := newWebhookRouter()

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "overovaci-token")
	q.Set("hub.challenge", "1158201444")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhook/whatsapp?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1158201444", w.Body.String())
}

func TestWhatsAppVerifyWrongToken(t *testing.T) {
	r := newWebhookRouter()

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=spatny&hub.challenge=42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWhatsAppReceiveAlwaysAcks(t *testing.T) {
	r := newWebhookRouter()

	tests := []struct {
		name string
		body string
	}{
		{name: "empty delivery", body: `{"entry":[]}`},
		{name: "status update without messages", body: `{"entry":[{"changes":[{"value":{}}]}]}`},
		{name: "non-text message", body: `{"entry":[{"changes":[{"value":{"messages":[{"from":"420777123456","type":"image"}]}}]}]}`},
		{name: "malformed body", body: `not-json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/whatsapp", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}
