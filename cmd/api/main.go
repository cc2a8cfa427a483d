package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"frontdesk/internal/auth"
	"frontdesk/internal/books"
	"frontdesk/internal/config"
	"frontdesk/internal/core"
	"frontdesk/internal/equipment"
	"frontdesk/internal/events"
	"frontdesk/internal/httpmiddleware"
	"frontdesk/internal/lookup"
	"frontdesk/internal/metrics"
	"frontdesk/internal/reminders"
	"frontdesk/internal/scan"
	"frontdesk/internal/session"
	"frontdesk/internal/store"
	"frontdesk/internal/sweeper"
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
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var pub events.Publisher
	if cfg.EventBackend == "memory" {
		pub = events.NewInMemory()
	} else {
		pub = events.NewRedisPublisher(redisClient.Client, "frontdesk")
	}

	var cooldown scan.CooldownStore
	if cfg.EventBackend == "memory" {
		cooldown = scan.NewMemoryCooldown(cfg.ScanCooldown)
	} else {
		cooldown = scan.NewRedisCooldown(redisClient.Client, cfg.ScanCooldown)
	}

	var resolver lookup.Resolver
	if cfg.LookupSkip {
		resolver = lookup.NewPGResolver(db.Client)
	} else {
		resolver = lookup.NewClient(cfg.LookupServiceURL, false)
	}

	bookSvc := books.NewService(books.NewPGRepo(db.Client), pub, cfg.FineDailyRate)
	remSvc := reminders.NewService(bookSvc, map[string]string{
		reminders.KindWelcome: "Welcome to the library",
	})
	sessionSvc := session.NewService(session.NewPGRepo(db.Client), pub, remSvc, cfg.StudentSessionTTL)
	equipSvc := equipment.NewService(equipment.NewPGRepo(db.Client), pub, cfg.EquipmentSessionTTL)
	classifier := scan.New(resolver, sessionSvc, cooldown)
	sweep := sweeper.New(sessionSvc, equipSvc, cfg.SweepInterval, cfg.SweepRetries)
	sweep.TrackActive(func(ctx context.Context) (int, error) {
		rows, err := sessionSvc.ActiveSessions(ctx)
		return len(rows), err
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/kiosks/register", func(c *gin.Context) {
		var req struct {
			KioskID string `json:"kiosk_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, err := auth.Issue(req.KioskID, "kiosk", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	v1 := r.Group("/v1", auth.KioskAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	v1.POST("/scan", func(c *gin.Context) {
		var req struct {
			ScanData string `json:"scan_data" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := classifier.Handle(c.Request.Context(), req.ScanData)
		if err != nil {
			respondErr(c, err)
			return
		}
		metrics.ScansTotal.WithLabelValues(string(res.Action)).Inc()
		if res.Action == scan.ActionCooldown {
			// Kiosks back off on 429; the message stays the stable one.
			respondErr(c, core.Cooldown(res.Message))
			return
		}
		c.JSON(http.StatusOK, res)
	})

	v1.GET("/status/:code", func(c *gin.Context) {
		res, err := classifier.Classify(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"result":        res,
			"is_checked_in": res.Action == scan.ActionCheckOut || res.Action == scan.ActionCooldown,
			"can_check_in":  res.Action == scan.ActionCheckIn,
		})
	})

	v1.GET("/sessions/active", func(c *gin.Context) {
		sessions, err := sessionSvc.ActiveSessions(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		metrics.ActiveStudentSessions.Set(float64(len(sessions)))
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	v1.POST("/students/:id/checkout", func(c *gin.Context) {
		res, err := sessionSvc.CheckOut(c.Request.Context(), c.Param("id"), session.ReasonManual)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	v1.GET("/stats", func(c *gin.Context) {
		stats, err := sessionSvc.Stats(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		loans, err := equipSvc.ActiveLoans(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"total_check_ins": stats.TotalCheckIns,
			"unique_students": stats.UniqueStudents,
			"average_minutes": stats.AverageMinutes,
			"active_loans":    len(loans),
		})
	})

	v1.GET("/loans/active", func(c *gin.Context) {
		loans, err := equipSvc.ActiveLoans(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"loans": loans})
	})

	v1.POST("/equipment/:id/loans", func(c *gin.Context) {
		var req struct {
			StudentID        string `json:"student_id" binding:"required"`
			TimeLimitMinutes int    `json:"time_limit_minutes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		loan, err := equipSvc.Start(c.Request.Context(), c.Param("id"), req.StudentID,
			time.Duration(req.TimeLimitMinutes)*time.Minute)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, loan)
	})

	v1.POST("/loans/:id/end", func(c *gin.Context) {
		res, err := equipSvc.End(c.Request.Context(), c.Param("id"), equipment.ReasonManual)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	v1.POST("/loans/:id/extend", func(c *gin.Context) {
		var req struct {
			AdditionalMinutes int `json:"additional_minutes" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		loan, err := equipSvc.Extend(c.Request.Context(), c.Param("id"),
			time.Duration(req.AdditionalMinutes)*time.Minute)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	})

	v1.POST("/books/:id/checkouts", func(c *gin.Context) {
		var req struct {
			StudentID string     `json:"student_id" binding:"required"`
			DueDate   *time.Time `json:"due_date"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		due := time.Now().UTC().Add(cfg.LoanPeriod)
		if req.DueDate != nil {
			due = *req.DueDate
		}
		co, err := bookSvc.Checkout(c.Request.Context(), c.Param("id"), req.StudentID, due)
		if err != nil {
			if core.CodeOf(err) == core.CodeConflict {
				metrics.BookConflicts.Inc()
			}
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, co)
	})

	v1.GET("/books/:id/availability", func(c *gin.Context) {
		available, total, err := bookSvc.Availability(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"available_copies": available, "total_copies": total})
	})

	v1.POST("/checkouts/:id/return", func(c *gin.Context) {
		res, err := bookSvc.Return(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	// External scheduler trigger; the periodic loop below covers normal
	// operation, this lets ops force a pass.
	v1.POST("/sweep", func(c *gin.Context) {
		res, err := sweep.Sweep(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go sweep.Run(sweepCtx)

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

	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// respondErr maps the error taxonomy onto HTTP statuses. Business outcomes
// keep their stable messages; anything else is a plain 500.
func respondErr(c *gin.Context, err error) {
	msg := err.Error()
	switch core.CodeOf(err) {
	case core.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": msg, "code": core.CodeNotFound})
	case core.CodeConflict:
		c.JSON(http.StatusConflict, gin.H{"error": msg, "code": core.CodeConflict})
	case core.CodeCooldown:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msg, "code": core.CodeCooldown})
	case core.CodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": core.CodeValidation})
	case core.CodeTransientStore:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg, "code": core.CodeTransientStore})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
