package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OriginalByteMe/note-taking-backend/internal/cache"
	"github.com/OriginalByteMe/note-taking-backend/internal/config"
	"github.com/OriginalByteMe/note-taking-backend/internal/handler"
	"github.com/OriginalByteMe/note-taking-backend/internal/middleware"
	"github.com/OriginalByteMe/note-taking-backend/internal/repository"
	"github.com/OriginalByteMe/note-taking-backend/internal/service"
	"github.com/OriginalByteMe/note-taking-backend/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	// The cache is best-effort: an unreachable Redis degrades to no caching,
	// it never blocks startup or correctness.
	var noteCache cache.Cache = cache.NewNoop()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unreachable at %s, running without cache: %v", cfg.Redis.Addr, err)
		} else {
			noteCache = cache.NewRedis(redisClient)
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	noteStore := repository.NewNoteStore(client, cfg.Database.Name)
	shareRepo := repository.NewShareRepository(client, cfg.Database.Name)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(userRepo)
	noteService := service.NewNoteService(
		noteStore, noteStore, noteStore, shareRepo,
		noteCache, wsManager,
		cfg.Lock.WaitTimeout,
		service.CacheTTL{
			Note:   cfg.Cache.NoteTTL,
			List:   cfg.Cache.ListTTL,
			Search: cfg.Cache.SearchTTL,
		},
	)
	shareService := service.NewShareService(shareRepo, noteStore, userRepo, noteCache)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	noteHandler := handler.NewNoteHandler(noteService)
	shareHandler := handler.NewShareHandler(shareService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/notes", noteHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/shared", noteHandler.ListShared).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/search", noteHandler.Search).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.SoftDelete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/purge", noteHandler.HardDelete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/versions", noteHandler.ListVersions).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/revert", noteHandler.Revert).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/resolve", noteHandler.Resolve).Methods("POST", "OPTIONS")

	protected.HandleFunc("/notes/{id}/shares", shareHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/shares", shareHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/shares/{userID}", shareHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}/shares/{userID}", shareHandler.Delete).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting note backend on %s (env: %s)", addr, cfg.Server.Env)
		log.Printf("Connected to CouchDB at %s:%s", cfg.Database.Host, cfg.Database.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"note-taking-backend"}`))
}
