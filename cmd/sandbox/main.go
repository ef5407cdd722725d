package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendMessageRequest mirrors the Graph API /messages payload. Only the
// fields the sandbox inspects are declared.
type SendMessageRequest struct {
	MessagingProduct string `json:"messaging_product" binding:"required"`
	To               string `json:"to" binding:"required"`
	Type             string `json:"type" binding:"required"`
	Template         *struct {
		Name string `json:"name"`
	} `json:"template"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendMessageResponse mirrors the Graph API success response.
type SendMessageResponse struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []ContactResponse `json:"contacts"`
	Messages         []MessageIDEntry  `json:"messages"`
}

type ContactResponse struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

type MessageIDEntry struct {
	ID string `json:"id"`
}

// GraphError mirrors the Graph API error envelope.
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	SandboxID   string    `json:"sandbox_id"`
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
}

// MockGraphAPI simulates the WhatsApp Cloud API messages endpoint.
type MockGraphAPI struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	sandboxID   string
	rng         *rand.Rand
}

func NewMockGraphAPI(successRate float64, minDelay, maxDelay time.Duration) *MockGraphAPI {
	return &MockGraphAPI{
		successRate: successRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		sandboxID:   "WA_SANDBOX_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockGraphAPI) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockGraphAPI) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

func (m *MockGraphAPI) newMessageID() string {
	return "wamid." + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

func (m *MockGraphAPI) randomError() *GraphError {
	errs := []GraphError{
		{Message: "(#131026) Message undeliverable", Type: "OAuthException", Code: 131026},
		{Message: "(#131047) Re-engagement message", Type: "OAuthException", Code: 131047},
		{Message: "(#131056) Pair rate limit hit", Type: "OAuthException", Code: 131056},
		{Message: "(#132000) Number of parameters does not match the expected number of params", Type: "OAuthException", Code: 132000},
		{Message: "(#368) Temporarily blocked for policies violations", Type: "OAuthException", Code: 368},
	}
	e := errs[m.rng.Intn(len(errs))]
	e.FBTraceID = uuid.New().String()[:16]
	return &e
}

// Handler struct holds the mock API and routes
type Handler struct {
	api *MockGraphAPI
}

func NewHandler(api *MockGraphAPI) *Handler {
	return &Handler{api: api}
}

// SendMessage handles POST /{version}/{phone_number_id}/messages the way
// the real Cloud API does: bearer token required, success yields a wamid,
// failure yields a Graph error envelope.
func (h *Handler) SendMessage(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= len("Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": GraphError{
			Message:   "Invalid OAuth access token",
			Type:      "OAuthException",
			Code:      190,
			FBTraceID: uuid.New().String()[:16],
		}})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": GraphError{
			Message:   "(#100) Invalid parameter: " + err.Error(),
			Type:      "OAuthException",
			Code:      100,
			FBTraceID: uuid.New().String()[:16],
		}})
		return
	}

	phoneNumberID := c.Param("phone_number_id")

	// Simulate upstream latency
	time.Sleep(h.api.randomDelay())

	if !h.api.shouldSucceed() {
		graphErr := h.api.randomError()
		log.Warn().
			Str("phone_number_id", phoneNumberID).
			Str("to", req.To).
			Int("code", graphErr.Code).
			Msg("Message send rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": graphErr})
		return
	}

	messageID := h.api.newMessageID()
	log.Info().
		Str("phone_number_id", phoneNumberID).
		Str("to", req.To).
		Str("type", req.Type).
		Str("message_id", messageID).
		Msg("Message accepted")

	c.JSON(http.StatusOK, SendMessageResponse{
		MessagingProduct: "whatsapp",
		Contacts:         []ContactResponse{{Input: req.To, WaID: req.To}},
		Messages:         []MessageIDEntry{{ID: messageID}},
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		SandboxID:   h.api.sandboxID,
		Timestamp:   time.Now(),
		SuccessRate: h.api.successRate,
	})
}

// UpdateConfig allows changing the sandbox behavior at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate *float64 `json:"success_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.SuccessRate != nil {
		if *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
			h.api.successRate = *config.SuccessRate
			log.Info().Float64("rate", *config.SuccessRate).Msg("Updated success rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Configuration updated",
		"success_rate": h.api.successRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	router.POST("/:version/:phone_number_id/messages", handler.SendMessage)
	router.GET("/health", handler.HealthCheck)
	router.PUT("/config", handler.UpdateConfig)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting WhatsApp Cloud API sandbox")

	api := NewMockGraphAPI(successRate, minDelay, maxDelay)
	handler := NewHandler(api)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
