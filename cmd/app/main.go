package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarksAPI/internal/allowlist"
	"MarksAPI/internal/config"
	"MarksAPI/internal/logging"
	"MarksAPI/internal/middleware"
	"MarksAPI/internal/observability"
	"MarksAPI/internal/services"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "marks-api:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// ======================
	// CONFIG & LOGGING
	// ======================
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer lg.Closer()
	log := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		log.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ======================
	// INFRA
	// ======================
	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()
	log.Info("storage ready", zap.String("backend", be.kind))

	// ======================
	// EXTERNALS
	// ======================
	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}
	validator, err := newEmailValidator(cfg)
	if err != nil {
		return err
	}

	// ======================
	// SERVICES
	// ======================
	tokens := middleware.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL)
	gate := services.NewAuthorizedEmailService(allowlist.NewFile(cfg.AuthorizedEmailsFile), be.emails, validator, log)
	otpSvc := services.NewOTPService(be.users, gate, mailer, tokens, services.OTPOptions{
		TTL:          cfg.OTPTTL,
		ResendWindow: cfg.OTPResendWindow,
		Provider:     cfg.EmailProvider,
	}, log)
	marksSvc := services.NewMarksService(be.marks, be.users, log)

	// ======================
	// SERVER
	// ======================
	e := newServer(app{
		cfg:    cfg,
		log:    log,
		tokens: tokens,
		otp:    otpSvc,
		marks:  marksSvc,
		gate:   gate,
		ping:   be.ping,
		level:  lg.Level,
	})
	for _, r := range e.Routes() {
		log.Debug("route", zap.String("method", r.Method), zap.String("path", r.Path))
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
