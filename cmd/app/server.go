package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"MarksAPI/external/abstractapi"
	"MarksAPI/external/brevo"
	"MarksAPI/external/resend"
	"MarksAPI/internal/apperr"
	"MarksAPI/internal/config"
	"MarksAPI/internal/mail"
	"MarksAPI/internal/metrics"
	"MarksAPI/internal/middleware"
	"MarksAPI/internal/services"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type app struct {
	cfg    *config.Config
	log    *zap.Logger
	tokens *middleware.TokenManager
	otp    *services.OTPService
	marks  *services.MarksService
	gate   *services.AuthorizedEmailService
	ping   pinger
	level  zap.AtomicLevel
}

func newServer(a app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(a.log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(a.log))
	e.Use(requestMetrics())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{a.cfg.ClientURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	auth := a.tokens.JWTMiddleware()
	admin := middleware.AdminOnly(a.cfg.AdminEmails)

	api := e.Group("/api")
	registerAuthRoutes(api, a.otp, a.tokens, authThrottle(a.cfg.AuthRatePerSecond, a.cfg.AuthRateBurst))
	registerMarksRoutes(api, a.marks, auth, admin)
	registerAuthorizedEmailRoutes(api, a.gate, auth, admin)
	api.GET("/health", healthHandler(a.ping, a.log))

	// zap's AtomicLevel speaks GET and PUT {"level":"debug"}.
	ops := api.Group("/admin", auth, admin)
	ops.GET("/log-level", echo.WrapHandler(a.level))
	ops.PUT("/log-level", echo.WrapHandler(a.level))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return e
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	})
}

func requestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				status, _ = errorStatus(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTP(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}

func newMailer(cfg *config.Config, log *zap.Logger) (mail.Sender, error) {
	switch cfg.EmailProvider {
	case config.ProviderBrevo:
		m, err := brevo.NewBrevoMailer(brevo.Options{
			APIKey:      cfg.BrevoAPIKey,
			SenderEmail: cfg.BrevoSenderEmail,
			SenderName:  cfg.BrevoSenderName,
			Timeout:     cfg.EmailTimeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderResend:
		m, err := resend.NewResendMailer(resend.Options{
			APIKey:  cfg.ResendAPIKey,
			From:    cfg.ResendSender,
			Timeout: cfg.EmailTimeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return mail.NewLogSender(log), nil
	}
}

func newEmailValidator(cfg *config.Config) (services.EmailValidator, error) {
	if !cfg.UseEmailReputation {
		return services.SyntaxValidator{}, nil
	}
	minRep, err := abstractapi.ParseReputation(cfg.EmailMinReputation)
	if err != nil {
		return nil, err
	}
	v, err := abstractapi.NewReputationValidator(abstractapi.Options{
		APIKey:  cfg.AbstractAPIKey,
		Timeout: cfg.EmailTimeout,
		Policy:  abstractapi.Policy{MinReputation: minRep, AllowRole: cfg.EmailAllowRole},
	})
	if err != nil {
		return nil, err
	}
	return services.ChainValidator{services.SyntaxValidator{}, reputationValidator{v}}, nil
}

// reputationValidator classifies provider verdicts for the HTTP layer.
type reputationValidator struct {
	v *abstractapi.ReputationValidator
}

func (r reputationValidator) Validate(ctx context.Context, email string) error {
	err := r.v.Validate(ctx, email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, abstractapi.ErrRejected):
		return apperr.Wrap(apperr.KindValidation, "This email address cannot be authorized", err)
	default:
		return apperr.Internal("Failed to add authorized email", fmt.Errorf("check email reputation: %w", err))
	}
}
