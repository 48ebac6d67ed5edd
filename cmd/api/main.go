package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rfidtrack/internal/attend"
	"rfidtrack/internal/auth"
	"rfidtrack/internal/config"
	"rfidtrack/internal/httpmiddleware"
	"rfidtrack/internal/metrics"
	"rfidtrack/internal/notify"
	"rfidtrack/internal/queue"
	"rfidtrack/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	var (
		backing attend.Store
		db      *store.DB
	)
	if cfg.StoreBackend == "memory" {
		backing = store.NewMemory()
		log.Println("using in-memory store; data will not survive restarts")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		backing = store.NewPostgres(db.Client)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	var notifier notify.Notifier
	switch cfg.NotifyBackend {
	case "off":
		notifier = notify.Noop{}
	case "memory":
		notifier = notify.NewBroadcast()
	default:
		notifier = notify.NewRedisNotifier(redisClient.Client, "")
	}
	notifier = notify.Log(notifier)

	clock := attend.SystemClock()
	directory := attend.NewDirectory(backing, clock)
	sessions := attend.NewLifecycle(backing, clock)
	scanner := attend.NewScanner(backing, sessions, clock)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db == nil || db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/terminals/register", func(c *gin.Context) {
		var req struct {
			TerminalID string `json:"terminal_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.TerminalID, "terminal", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.TerminalAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Scan submission. Validation rejections are normal outcomes and come
	// back as 200 with a tagged status; only storage trouble is a 5xx.
	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			CardNumber string `json:"card_number" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := scanner.Scan(c.Request.Context(), req.CardNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.ObserveScan(result.Status)

		if result.Accepted() {
			msg, err := queue.Encode(queue.KindScan, queue.ScanEvent{
				SessionID:   result.SessionID,
				CardNumber:  result.CardNumber,
				ProfileName: result.ProfileName,
				ScanTime:    result.Attendance.ScanTime,
			})
			if err == nil {
				if err := q.Publish(ctx, msg); err != nil {
					log.Printf("queue publish failed: %v", err)
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       result.Status,
			"reason":       result.Status.Reason(),
			"accepted":     result.Accepted(),
			"card_number":  result.CardNumber,
			"profile_name": result.ProfileName,
			"session_id":   result.SessionID,
		})
	})

	authGroup.POST("/cards", func(c *gin.Context) {
		var req struct {
			CardNumber string `json:"card_number" binding:"required"`
			Name       string `json:"name" binding:"required"`
			Age        int    `json:"age"`
			Birthday   string `json:"birthday"`
			Email      string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		card, profile, err := directory.RegisterCard(c.Request.Context(), req.CardNumber, attend.Profile{
			Name:     req.Name,
			Age:      req.Age,
			Birthday: req.Birthday,
			Email:    req.Email,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"card": card, "profile": profile})
	})

	authGroup.GET("/cards", func(c *gin.Context) {
		cards, err := directory.ListCards(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": cards})
	})

	authGroup.DELETE("/cards/:id", func(c *gin.Context) {
		if err := directory.DeleteCard(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authGroup.PUT("/profiles/:id", func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Age      int    `json:"age"`
			Birthday string `json:"birthday"`
			Email    string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := directory.UpdateProfile(c.Request.Context(), attend.Profile{
			ID:       c.Param("id"),
			Name:     req.Name,
			Age:      req.Age,
			Birthday: req.Birthday,
			Email:    req.Email,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authGroup.DELETE("/profiles/:id", func(c *gin.Context) {
		if err := directory.DeleteProfile(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Name               string   `json:"name" binding:"required"`
			StartTimeMs        int64    `json:"start_time_ms" binding:"required"`
			EndTimeMs          int64    `json:"end_time_ms" binding:"required"`
			ParticipantCardIDs []string `json:"participant_card_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := sessions.CreateSession(c.Request.Context(), req.Name,
			time.UnixMilli(req.StartTimeMs).UTC(), time.UnixMilli(req.EndTimeMs).UTC(),
			req.ParticipantCardIDs)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"session": session, "state": session.State()})
	})

	authGroup.GET("/sessions", func(c *gin.Context) {
		var (
			list []attend.Session
			err  error
		)
		switch c.Query("filter") {
		case "upcoming":
			list, err = sessions.UpcomingSessions(c.Request.Context())
		case "completed":
			list, err = sessions.CompletedSessions(c.Request.Context())
		default:
			list, err = sessions.ListSessions(c.Request.Context())
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	authGroup.POST("/sessions/:id/start", func(c *gin.Context) {
		session, err := sessions.StartSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.ObserveSessionStarted()
		_ = notifier.Publish(ctx, notify.Update{Kind: "session", SessionID: session.ID, At: time.Now().UTC()})
		c.JSON(http.StatusOK, gin.H{"session": session, "state": session.State()})
	})

	authGroup.POST("/sessions/:id/stop", func(c *gin.Context) {
		session, err := sessions.StopSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.ObserveSessionCompleted()
		_ = notifier.Publish(ctx, notify.Update{Kind: "session", SessionID: session.ID, At: time.Now().UTC()})
		c.JSON(http.StatusOK, gin.H{"session": session, "state": session.State()})
	})

	authGroup.DELETE("/sessions/:id", func(c *gin.Context) {
		if err := sessions.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authGroup.POST("/sessions/:id/participants", func(c *gin.Context) {
		var req struct {
			CardIDs []string `json:"card_ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := sessions.AddParticipants(c.Request.Context(), c.Param("id"), req.CardIDs); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authGroup.DELETE("/sessions/:id/participants", func(c *gin.Context) {
		if err := sessions.ClearParticipants(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authGroup.GET("/sessions/:id/attendance", func(c *gin.Context) {
		sessionID := c.Param("id")
		session, err := sessions.GetSession(c.Request.Context(), sessionID)
		if err != nil {
			writeError(c, err)
			return
		}
		entries, err := backing.AttendanceBySession(c.Request.Context(), sessionID)
		if err != nil {
			writeError(c, err)
			return
		}
		restricted, err := sessions.Restricted(c.Request.Context(), sessionID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session":    session,
			"state":      session.State(),
			"restricted": restricted,
			"count":      len(entries),
			"attendance": entries,
		})
	})

	authGroup.POST("/sessions/:id/export", func(c *gin.Context) {
		sessionID := c.Param("id")
		if _, err := sessions.GetSession(c.Request.Context(), sessionID); err != nil {
			writeError(c, err)
			return
		}
		msg, err := queue.Encode(queue.KindExport, queue.ExportRequest{SessionID: sessionID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := q.Publish(c.Request.Context(), msg); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export enqueue failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"session_id": sessionID, "status": "export queued"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attend.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attend.ErrDuplicateCardNumber),
		errors.Is(err, attend.ErrSessionActiveConflict),
		errors.Is(err, attend.ErrSessionCompleted),
		errors.Is(err, attend.ErrDuplicateAttendance):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attend.ErrInvalidWindow),
		errors.Is(err, attend.ErrUnknownCard):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
