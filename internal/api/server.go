package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/account"
	"github.com/gmsas95/mediremind/internal/adherence"
	"github.com/gmsas95/mediremind/internal/config"
	"github.com/gmsas95/mediremind/internal/errors"
	"github.com/gmsas95/mediremind/internal/medicine"
	"github.com/gmsas95/mediremind/internal/metrics"
	"github.com/gmsas95/mediremind/internal/notify"
	"github.com/gmsas95/mediremind/internal/reminder"
	"github.com/gmsas95/mediremind/internal/schedule"
	"github.com/gmsas95/mediremind/internal/store"
)

// Server handles HTTP API and WebSocket
type Server struct {
	app        *fiber.App
	config     *config.Config
	accounts   *account.Store
	medicines  *medicine.Store
	ledger     *adherence.Ledger
	engine     *reminder.Engine
	dispatcher *notify.Dispatcher
	matcher    account.FaceMatcher
	hub        *store.Hub
	clock      schedule.Clock
	logger     *zap.Logger
}

// New creates a new API server
func New(cfg *config.Config, accounts *account.Store, medicines *medicine.Store, ledger *adherence.Ledger, engine *reminder.Engine, dispatcher *notify.Dispatcher, matcher account.FaceMatcher, hub *store.Hub, clock schedule.Clock, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	if clock == nil {
		clock = schedule.System()
	}

	s := &Server{
		app:        app,
		config:     cfg,
		accounts:   accounts,
		medicines:  medicines,
		ledger:     ledger,
		engine:     engine,
		dispatcher: dispatcher,
		matcher:    matcher,
		hub:        hub,
		clock:      clock,
		logger:     logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Middleware
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check and metrics
	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)

	// API routes
	api := s.app.Group("/api")

	// Public routes
	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)
	api.Post("/auth/face", s.handleFaceLogin)

	// Protected routes
	protected := api.Use(s.authMiddleware())

	// Medicines
	protected.Get("/medicines", s.handleListMedicines)
	protected.Post("/medicines", s.handleCreateMedicine)
	protected.Get("/medicines/:id", s.handleGetMedicine)
	protected.Post("/medicines/:id/notify", s.handleManualNotify)

	// Adherence
	protected.Get("/logs", s.handleListLogs)
	protected.Get("/report/weekly", s.handleWeeklyReport)

	// Reminder slot
	protected.Get("/reminder", s.handleReminderState)
	protected.Post("/reminder/taken", s.handleReminderTaken)

	// Stats
	protected.Get("/stats", s.handleStats)

	// WebSocket
	s.app.Get("/ws", websocket.New(s.handleWebSocket))
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// ==================== Handlers ====================

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   "0.1.0",
		"engine":    s.engine.IsRunning(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; version=0.0.4")
	return c.SendString(metrics.Prometheus())
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req struct {
		CaretakerPhone string    `json:"caretaker_phone"`
		PatientPhone   string    `json:"patient_phone"`
		Password       string    `json:"password"`
		FaceImage      string    `json:"face_image"`
		FaceDescriptor []float64 `json:"face_descriptor"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	acct := &account.Account{
		CaretakerPhone: req.CaretakerPhone,
		PatientPhone:   req.PatientPhone,
		FaceImage:      req.FaceImage,
	}
	if len(req.FaceDescriptor) > 0 {
		acct.SetDescriptor(req.FaceDescriptor)
	}

	if err := s.accounts.Register(acct, req.Password); err != nil {
		return s.errorResponse(c, err)
	}

	token, err := s.issueToken(acct.CaretakerPhone)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.Status(201).JSON(fiber.Map{"token": token, "account": acct})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		CaretakerPhone string `json:"caretaker_phone"`
		Password       string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	acct, err := s.accounts.Authenticate(req.CaretakerPhone, req.Password)
	if err != nil {
		return s.errorResponse(c, err)
	}

	token, err := s.issueToken(acct.CaretakerPhone)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{"token": token, "account": acct})
}

func (s *Server) handleFaceLogin(c *fiber.Ctx) error {
	var req struct {
		Descriptor []float64 `json:"descriptor"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	acct, ok, err := s.matcher.Match(req.Descriptor)
	if err != nil {
		s.logger.Error("Face match failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "face match failed"})
	}
	if !ok {
		return s.errorResponse(c, errors.ErrFaceNotRecognized)
	}

	token, err := s.issueToken(acct.CaretakerPhone)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{"token": token, "account": acct})
}

func (s *Server) handleListMedicines(c *fiber.Ctx) error {
	meds, err := s.medicines.ListByOwner(s.ownerID(c))
	if err != nil {
		s.logger.Error("Failed to list medicines", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medicines"})
	}
	return c.JSON(meds)
}

func (s *Server) handleCreateMedicine(c *fiber.Ctx) error {
	var req struct {
		Name       string   `json:"name"`
		DosageMg   int      `json:"dosage_mg"`
		PillCount  int      `json:"pill_count"`
		BeforeFood bool     `json:"before_food"`
		Days       []string `json:"days"`
		TimeOfDay  string   `json:"time_of_day"`
		ImageRef   string   `json:"image_ref"`
		AudioRef   string   `json:"audio_ref"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	med := &medicine.Medicine{
		OwnerID:    s.ownerID(c),
		Name:       req.Name,
		DosageMg:   req.DosageMg,
		PillCount:  req.PillCount,
		BeforeFood: req.BeforeFood,
		TimeOfDay:  req.TimeOfDay,
		ImageRef:   req.ImageRef,
		AudioRef:   req.AudioRef,
	}
	med.SetDays(req.Days)

	if err := s.medicines.Create(med); err != nil {
		return s.errorResponse(c, err)
	}

	return c.Status(201).JSON(med)
}

func (s *Server) handleGetMedicine(c *fiber.Ctx) error {
	med, err := s.ownedMedicine(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(med)
}

// handleManualNotify re-sends the patient SMS on demand. The cooldown check
// is skipped but the cooldown is stamped, and unlike the automated path any
// delivery error is surfaced to the caller.
func (s *Server) handleManualNotify(c *fiber.Ctx) error {
	med, err := s.ownedMedicine(c)
	if err != nil {
		return s.errorResponse(c, err)
	}

	if err := s.dispatcher.SendManual(c.Context(), med, s.clock.Now()); err != nil {
		s.logger.Error("Manual send failed",
			zap.String("medicine_id", med.ID),
			zap.Error(err))
		return s.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"sent": true})
}

func (s *Server) handleListLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	logs, err := s.ledger.ListByOwner(s.ownerID(c), limit)
	if err != nil {
		s.logger.Error("Failed to list logs", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to list logs"})
	}
	return c.JSON(logs)
}

func (s *Server) handleWeeklyReport(c *fiber.Ctx) error {
	report, err := s.ledger.Weekly(s.ownerID(c), s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to build weekly report", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to build report"})
	}
	return c.JSON(report)
}

func (s *Server) handleReminderState(c *fiber.Ctx) error {
	return c.JSON(s.engine.Machine().Snapshot())
}

func (s *Server) handleReminderTaken(c *fiber.Ctx) error {
	log, err := s.engine.ConfirmTaken(s.clock.Now())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(log)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(metrics.Default().Snapshot())
}

// handleWebSocket streams state-change events so clients can refresh without
// polling. Auth is a token query parameter since browsers cannot set headers
// on websocket upgrades.
func (s *Server) handleWebSocket(c *websocket.Conn) {
	defer c.Close()

	if _, err := s.parseToken(c.Query("token")); err != nil {
		c.WriteJSON(fiber.Map{"error": "invalid token"})
		return
	}

	metrics.Default().IncrementActiveConnections()
	defer metrics.Default().DecrementActiveConnections()

	changes, cancel := s.hub.Subscribe(
		store.KeyMedicines, store.KeyLogs, store.KeyReminder)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := c.WriteJSON(change); err != nil {
				return
			}
		}
	}
}

// ==================== Auth ====================

func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
		}

		owner, err := s.parseToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals("owner", owner)
		return c.Next()
	}
}

func (s *Server) issueToken(caretakerPhone string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": caretakerPhone,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(7 * 24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(s.config.Security.JWTSecret))
}

func (s *Server) parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Security.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.ErrUnauthorized
	}
	return sub, nil
}

func (s *Server) ownerID(c *fiber.Ctx) string {
	owner, _ := c.Locals("owner").(string)
	return owner
}

func (s *Server) ownedMedicine(c *fiber.Ctx) (*medicine.Medicine, error) {
	med, err := s.medicines.Get(c.Params("id"))
	if err != nil {
		return nil, err
	}
	if med == nil || med.OwnerID != s.ownerID(c) {
		return nil, errors.ErrNotFound
	}
	return med, nil
}

func (s *Server) errorResponse(c *fiber.Ctx, err error) error {
	status := 500
	switch errors.GetCode(err) {
	case errors.ErrBadRequest.Code, errors.ErrWeakPassword.Code,
		errors.ErrInvalidMedicine.Code, errors.ErrInvalidSchedule.Code:
		status = 400
	case errors.ErrBadCredentials.Code, errors.ErrFaceNotRecognized.Code,
		errors.ErrUnauthorized.Code:
		status = 401
	case errors.ErrNotFound.Code:
		status = 404
	case errors.ErrAccountExists.Code:
		status = 409
	case errors.ErrNoActiveReminder.Code:
		status = 409
	case errors.ErrNoRecipient.Code:
		status = 422
	case errors.ErrSendFailed.Code:
		status = 502
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
