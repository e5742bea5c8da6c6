package http

import (
	"github.com/go-auth-sms/internal/application/auth"
	"github.com/go-auth-sms/internal/application/token"
	redisinfra "github.com/go-auth-sms/internal/infrastructure/redis"
)

// Deps holds the constructed services the router wires into handlers.
type Deps struct {
	AuthSvc  auth.Service
	TokenSvc token.Service
	Store    redisinfra.Store
}
