package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/router"
	"github.com/otpgate/otpgate/internal/verification"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.verification.enabled") {
		if err := verification.New(verification.Dependency{
			Config:        a.config,
			Instrument:    a.ins,
			UID:           a.uid,
			HMAC:          a.hmac,
			CodeGenerator: a.codegen,
			Clock:         a.clock,
			Validator:     a.validator,
			Router:        a.router,
			DBConn:        a.dbConn,
			CacheConn:     a.cacheConn,
			Messaging:     a.messaging,
			Mail:          a.mail,
			Goroutine:     a.goroutine,
		}); err != nil {
			slog.Error("failed to init module verification", "error", err)
			os.Exit(1)
		}
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

func (healthResponse) Message() string {
	return "service is healthy"
}

func (a *App) healthEndpoint(r *router.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.dbConn.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "health check failed on database", "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	if err := a.cacheConn.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "health check failed on redis", "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	return healthResponse{Status: "ok"}, nil
}
