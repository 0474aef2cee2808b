package main

import (
	"context"
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"repcirAPI/handlers"
	"repcirAPI/internal/config"
	"repcirAPI/middleware"
)

func (a *app) routes(cfg *config.Config, rl *middleware.RateLimiter, verify middleware.TokenVerifier) (http.Handler, error) {
	userHandler := handlers.NewUserHandler(a.users)
	challengeHandler := handlers.NewChallengeHandler(a.challenges)
	circleHandler := handlers.NewCircleHandler(a.circles)
	messageHandler := handlers.NewMessageHandler(a.messages, a.hub)
	socialHandler := handlers.NewSocialHandler(a.badges, a.feed)
	workoutHandler := handlers.NewWorkoutHandler(a.workouts)
	billingHandler := handlers.NewBillingHandler(a.billing)
	notificationHandler := handlers.NewNotificationHandler(a.notifications)
	cronHandler := handlers.NewCronHandler(a.retention)
	webhookHandler, err := handlers.NewWebhookHandler(a.users, a.billing, cfg.Clerk.WebhookSecret)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(rl.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.Metrics.User, cfg.Metrics.Password)(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := a.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "repcir-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")

	r.Handle("/api/cron/data-retention",
		middleware.CronAuthMiddleware(cfg.Cron.Secret)(http.HandlerFunc(cronHandler.DataRetention))).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(verify))

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")

	protected.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	protected.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")
	protected.HandleFunc("/challenges/{id}/join", challengeHandler.Join).Methods("POST")
	protected.HandleFunc("/challenges/{id}/join", challengeHandler.Leave).Methods("DELETE")
	protected.HandleFunc("/challenges/{id}/checkin", challengeHandler.CheckIn).Methods("POST")
	protected.HandleFunc("/challenges/{id}/progress", challengeHandler.Progress).Methods("GET")
	protected.HandleFunc("/challenges/{id}/proof", challengeHandler.UploadProof).Methods("POST")

	protected.HandleFunc("/circles", circleHandler.ListCircles).Methods("GET")
	protected.HandleFunc("/circles", circleHandler.CreateCircle).Methods("POST")
	protected.HandleFunc("/circles/join", circleHandler.Redeem).Methods("POST")
	protected.HandleFunc("/circles/{id}/members", circleHandler.ListMembers).Methods("GET")
	protected.HandleFunc("/circles/{id}/invitations", circleHandler.CreateInvitation).Methods("POST")

	protected.HandleFunc("/messages", messageHandler.List).Methods("GET")
	protected.HandleFunc("/messages", messageHandler.Send).Methods("POST")
	protected.HandleFunc("/messages/ws", messageHandler.Connect).Methods("GET")

	protected.HandleFunc("/badges", socialHandler.ListBadges).Methods("GET")
	protected.HandleFunc("/feed", socialHandler.Feed).Methods("GET")

	protected.HandleFunc("/ai/workouts", workoutHandler.Generate).Methods("POST")
	protected.HandleFunc("/ai/workouts/{id}", workoutHandler.GetJob).Methods("GET")

	protected.HandleFunc("/billing/checkout", billingHandler.Checkout).Methods("POST")
	protected.HandleFunc("/billing/portal", billingHandler.Portal).Methods("POST")
	protected.HandleFunc("/billing/subscription", billingHandler.Subscription).Methods("GET")

	protected.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("POST")
	protected.HandleFunc("/notifications/devices", notificationHandler.RegisterDevice).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)
	return corsHandler(r), nil
}
