package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/memories/internal/backup"
	"github.com/dukerupert/memories/internal/billing"
	"github.com/dukerupert/memories/internal/config"
	"github.com/dukerupert/memories/internal/email"
	"github.com/dukerupert/memories/internal/handler"
	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/middleware"
	"github.com/dukerupert/memories/internal/push"
	"github.com/dukerupert/memories/internal/store"
	"github.com/dukerupert/memories/internal/suggest"
	ws "github.com/dukerupert/memories/internal/websocket"
)

const (
	authRateLimit   = 10
	authRateWindow  = time.Minute
	cleanupInterval = time.Hour
	sentRetention   = 30 * 24 * time.Hour
)

type Server struct {
	db     *sql.DB
	hub    *ws.Hub
	sched  *memory.Scheduler
	logger *slog.Logger

	authH       *handler.AuthHandler
	memoryH     *handler.MemoryHandler
	suggestionH *handler.SuggestionHandler
	dashboardH  *handler.DashboardHandler
	challengeH  *handler.ChallengeHandler
	practiceH   *handler.PracticeHandler
	calendarH   *handler.CalendarHandler
	profileH    *handler.ProfileHandler
	billingH    *handler.BillingHandler
	pushH       *handler.PushHandler
	feedH       *handler.FeedHandler
	healthH     *handler.HealthHandler

	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	resetCodeStore *store.ResetCodeStore
	pushStore      *store.PushStore
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	pushScheduler  *push.Scheduler
	originPatterns []string
}

// New wires stores, services and handlers from cfg.
func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	sched := NewScheduler(cfg)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	resetCodeStore := store.NewResetCodeStore(db)
	memoryStore := store.NewMemoryStore(db)
	practiceStore := store.NewPracticeStore(db)
	streakStore := store.NewStreakStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.FromEmail)
	var pushSched *push.Scheduler
	if pushSvc.Configured() {
		pushSched = push.NewScheduler(pushSvc, pushStore, memoryStore, sched,
			logger.With("component", "push"), cfg.ReminderDays, cfg.ReminderHour)
	}

	billingClient := billing.NewClient(BillingConfig(cfg))

	suggester := suggest.New(suggest.Config{
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OpenAITimeout,
	})

	backupMgr := backup.NewManager(BackupConfig(cfg), db, backupStore, logger.With("component", "backup"))

	return &Server{
		db:     db,
		hub:    hub,
		sched:  sched,
		logger: logger,

		authH:       handler.NewAuthHandler(userStore, sessionStore, resetCodeStore, emailClient, logger.With("component", "auth")),
		memoryH:     handler.NewMemoryHandler(memoryStore, hub, cfg.FreeMemoryLimit, logger.With("component", "memory")),
		suggestionH: handler.NewSuggestionHandler(memoryStore, sched, suggester, logger.With("component", "suggest")),
		dashboardH:  handler.NewDashboardHandler(memoryStore, practiceStore, streakStore, sched, cfg.FreeMemoryLimit, logger.With("component", "dashboard")),
		challengeH:  handler.NewChallengeHandler(memoryStore, practiceStore, streakStore, sched, hub, logger.With("component", "challenge")),
		practiceH:   handler.NewPracticeHandler(memoryStore, practiceStore, sched, logger.With("component", "practice")),
		calendarH:   handler.NewCalendarHandler(memoryStore, sched, logger.With("component", "calendar")),
		profileH:    handler.NewProfileHandler(userStore, cfg.BaseURL, logger.With("component", "profile")),
		billingH:    handler.NewBillingHandler(billingClient, userStore, logger.With("component", "billing")),
		pushH:       handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		feedH:       handler.NewFeedHandler(userStore, memoryStore, sched, cfg.BaseURL, logger.With("component", "feed")),
		healthH:     handler.NewHealthHandler(db),

		userStore:      userStore,
		sessionStore:   sessionStore,
		resetCodeStore: resetCodeStore,
		pushStore:      pushStore,
		rateLimiter:    middleware.NewRateLimiter(authRateLimit, authRateWindow),
		backupManager:  backupMgr,
		pushScheduler:  pushSched,
		originPatterns: originPatterns(cfg.BaseURL),
	}
}

// NewScheduler builds the memory scheduler with the configured location,
// deck size and upcoming limit.
func NewScheduler(cfg *config.Config) *memory.Scheduler {
	return memory.NewScheduler(
		memory.WithClock(memory.SystemClock{Location: cfg.Location}),
		memory.WithDeckSize(cfg.PracticeDeckSize),
		memory.WithUpcomingLimit(cfg.UpcomingLimit),
	)
}

func BillingConfig(cfg *config.Config) billing.Config {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return billing.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		PriceID:       cfg.Stripe.PriceID,
		SuccessURL:    base + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     base + "/pricing",
	}
}

func BackupConfig(cfg *config.Config) backup.Config {
	return backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		},
		Passphrase:    cfg.BackupPassphrase,
		Hour:          cfg.BackupHour,
		RetentionDays: cfg.BackupRetentionDays,
	}
}

func originPatterns(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// Start launches the background schedulers that are configured.
func (s *Server) Start(ctx context.Context) {
	if s.pushScheduler != nil {
		s.pushScheduler.Start(ctx)
	} else {
		s.logger.Info("push reminders disabled")
	}
	if s.backupManager.Enabled() {
		s.backupManager.Start(ctx)
	} else {
		s.logger.Info("backups disabled")
	}
}

// Stop halts the background schedulers.
func (s *Server) Stop() {
	if s.pushScheduler != nil {
		s.pushScheduler.Stop()
	}
	if s.backupManager.Enabled() {
		s.backupManager.Stop()
	}
}

// RunCleanup removes expired sessions, reset codes, old reminder markers
// and idle rate limiter entries every hour until ctx is done.
func (s *Server) RunCleanup(ctx context.Context) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		s.Cleanup()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Server) Cleanup() {
	if n, err := s.sessionStore.DeleteExpired(); err != nil {
		s.logger.Error("cleanup sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}
	if n, err := s.resetCodeStore.DeleteExpired(); err != nil {
		s.logger.Error("cleanup reset codes", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired reset codes", "count", n)
	}
	if _, err := s.pushStore.CleanupSent(time.Now().Add(-sentRetention)); err != nil {
		s.logger.Error("cleanup sent notifications", "error", err)
	}
	s.rateLimiter.Cleanup(10 * authRateWindow)
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthH.Health)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimited(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/forgot", s.rateLimited(s.authH.ForgotPassword))
	outerMux.HandleFunc("POST /api/auth/reset", s.rateLimited(s.authH.ResetPassword))
	outerMux.HandleFunc("POST /stripe/webhook", s.billingH.Webhook)
	outerMux.HandleFunc("GET /feeds/{token}", s.feedH.Atom)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile", s.profileH.Update)
	mux.HandleFunc("DELETE /api/profile", s.profileH.Delete)
	mux.HandleFunc("POST /api/profile/feed-token", s.profileH.RotateFeedToken)

	mux.HandleFunc("GET /api/memories", s.memoryH.List)
	mux.HandleFunc("POST /api/memories", s.memoryH.Create)
	mux.HandleFunc("DELETE /api/memories/{id}", s.memoryH.Delete)
	mux.HandleFunc("POST /api/memories/{id}/suggestion", s.suggestionH.Suggest)

	mux.HandleFunc("GET /api/dashboard", s.dashboardH.Get)

	mux.HandleFunc("GET /api/challenge", s.challengeH.Get)
	mux.HandleFunc("POST /api/challenge/answer", s.challengeH.Answer)

	mux.HandleFunc("GET /api/practice", s.practiceH.Deck)
	mux.HandleFunc("POST /api/practice/results", s.practiceH.RecordResult)
	mux.HandleFunc("POST /api/practice/score", s.practiceH.Score)

	mux.HandleFunc("GET /api/calendar", s.calendarH.Month)

	mux.HandleFunc("POST /api/billing/checkout", s.billingH.Checkout)
	mux.HandleFunc("POST /api/billing/verify", s.billingH.Verify)

	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.originPatterns))
}
