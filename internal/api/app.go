package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-messaging/internal/config"
	"github.com/npezzotti/go-messaging/internal/messaging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type MessagingApp struct {
	log        *log.Logger
	svc        messaging.MessagingService
	db         Pinger
	mux        *http.Server
	signingKey []byte
}

func NewMessagingApp(mux *http.ServeMux, logger *log.Logger, svc messaging.MessagingService, db Pinger, cfg *config.Config) *MessagingApp {
	s := &MessagingApp{
		log:        logger,
		svc:        svc,
		db:         db,
		signingKey: cfg.SigningKey,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.Handle("POST /api/messages", s.authMiddleware(s.createMessage))
	mux.Handle("PUT /api/messages/{id}", s.authMiddleware(s.editMessage))
	mux.Handle("POST /api/messages/{id}/read", s.authMiddleware(s.markRead))
	mux.Handle("GET /api/messages/{id}/thread", s.authMiddleware(s.getThread))
	mux.Handle("GET /api/messages/{id}/history", s.authMiddleware(s.getHistory))
	mux.Handle("GET /api/messages/unread", s.authMiddleware(s.getUnread))
	mux.Handle("GET /api/conversations/{userId}", s.authMiddleware(s.getConversation))
	mux.Handle("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.Handle("POST /api/notifications/{id}/read", s.authMiddleware(s.markNotificationRead))
	mux.Handle("DELETE /api/account", s.authMiddleware(s.deleteAccount))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *MessagingApp) Handler() http.Handler {
	return s.mux.Handler
}

func (s *MessagingApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *MessagingApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
