package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"hcasc.cz/dagmar/web/common"
)

const whatsappFallbackReply = "Děkujeme za zprávu, ozveme se co nejdříve."

// WhatsAppEndpoint handles the Meta webhook: the GET verification handshake
// and inbound guest messages answered with an LLM completion.
type WhatsAppEndpoint struct {
	verifyToken string
	accessToken string
	phoneID     string
	geminiKey   string
	logger      *zap.Logger
	httpClient  *http.Client
}

func RegisterWhatsAppRoutes(r *gin.RouterGroup, verifyToken, accessToken, phoneID, geminiKey string, logger *zap.Logger) {
	endpoint := &WhatsAppEndpoint{
		verifyToken: verifyToken,
		accessToken: accessToken,
		phoneID:     phoneID,
		geminiKey:   geminiKey,
		logger:      logger,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	r.GET("/webhook/whatsapp", endpoint.Verify)
	r.POST("/webhook/whatsapp", endpoint.Receive)
}

// Verify answers the hub challenge Meta sends when the webhook is installed.
func (ep *WhatsAppEndpoint) Verify(c *gin.Context) {
	if c.Query("hub.mode") == "subscribe" && c.Query("hub.verify_token") == ep.verifyToken {
		c.String(http.StatusOK, c.Query("hub.challenge"))
		return
	}
	c.JSON(http.StatusForbidden, common.NewErrorResponse(common.CodeForbidden, "Verification failed"))
}

type whatsAppWebhookDTO struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive acknowledges the delivery immediately; Meta retries on anything
// but 200. Reply sending happens before the response since the handler is
// quick enough at this traffic level.
func (ep *WhatsAppEndpoint) Receive(c *gin.Context) {
	var dto whatsAppWebhookDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusOK, common.NewOKResponse())
		return
	}
	for _, entry := range dto.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				reply := ep.composeReply(c.Request.Context(), msg.Text.Body)
				if err := ep.sendMessage(c.Request.Context(), msg.From, reply); err != nil {
					ep.logger.Warn("whatsapp send failed", zap.Error(err))
				}
			}
		}
	}
	c.JSON(http.StatusOK, common.NewOKResponse())
}

// composeReply asks Gemini for a short answer; any failure falls back to the
// fixed acknowledgement text.
func (ep *WhatsAppEndpoint) composeReply(ctx context.Context, message string) string {
	if ep.geminiKey == "" {
		return whatsappFallbackReply
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  ep.geminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		ep.logger.Warn("gemini client failed", zap.Error(err))
		return whatsappFallbackReply
	}
	prompt := "Jsi recepční malého hotelu. Odpověz stručně a zdvořile česky na zprávu hosta: " + message
	result, err := client.Models.GenerateContent(
		ctx,
		"gemini-2.5-flash",
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			MaxOutputTokens: 400,
			Temperature:     genai.Ptr[float32](0.7),
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: genai.Ptr[int32](0),
			},
		},
	)
	if err != nil || result.Text() == "" {
		if err != nil {
			ep.logger.Warn("gemini completion failed", zap.Error(err))
		}
		return whatsappFallbackReply
	}
	return result.Text()
}

func (ep *WhatsAppEndpoint) sendMessage(ctx context.Context, to, text string) error {
	body, err := json.Marshal(gin.H{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              gin.H{"body": text},
	})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	url := fmt.Sprintf("https://graph.facebook.com/v20.0/%s/messages", ep.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ep.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ep.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling graph api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("graph api returned %d", resp.StatusCode)
	}
	return nil
}
