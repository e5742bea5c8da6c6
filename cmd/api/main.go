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

	"github.com/go-auth-sms/internal/application/auth"
	"github.com/go-auth-sms/internal/application/smscode"
	"github.com/go-auth-sms/internal/application/ticket"
	"github.com/go-auth-sms/internal/application/token"
	"github.com/go-auth-sms/internal/config"
	"github.com/go-auth-sms/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-auth-sms/internal/infrastructure/jwt"
	redisinfra "github.com/go-auth-sms/internal/infrastructure/redis"
	"github.com/go-auth-sms/internal/infrastructure/sns"
	transporthttp "github.com/go-auth-sms/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Ephemeral store: codes, cooldowns, tickets and refresh jtis live here.
	store, err := redisinfra.NewStore(cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer store.Close()

	// Bootstrap the users table (creates it if it doesn't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.UsersTable)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.UsersTable)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	// SNS SMS sender (optional — graceful fallback in dev).
	var smsSender sns.Sender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	tokenSvc := token.NewService(token.ServiceDeps{Store: store, JWTProvider: jwtProvider})
	codeSvc := smscode.NewService(cfg, smscode.ServiceDeps{Store: store, Sender: smsSender})
	ticketSvc := ticket.NewService(cfg, store)
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:  userRepo,
		TokenSvc:  tokenSvc,
		CodeSvc:   codeSvc,
		TicketSvc: ticketSvc,
	})

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		AuthSvc:  authSvc,
		TokenSvc: tokenSvc,
		Store:    store,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
