package main

import (
	"net/http"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/middleware"
	"MarksAPI/internal/services"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

var errBadBody = apperr.Validation("Invalid request body")

func sendOTPHandler(otpSvc *services.OTPService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendOTPRequest
		if err := c.Bind(&req); err != nil {
			return errBadBody
		}
		if err := otpSvc.RequestOTP(c.Request().Context(), req.Email); err != nil {
			return err
		}
		return ok(c, http.StatusOK, echo.Map{"message": "OTP sent successfully to your email"})
	}
}

func verifyOTPHandler(otpSvc *services.OTPService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req verifyOTPRequest
		if err := c.Bind(&req); err != nil {
			return errBadBody
		}
		res, err := otpSvc.VerifyOTP(c.Request().Context(), req.Email, req.OTP)
		if err != nil {
			return err
		}
		return ok(c, http.StatusOK, echo.Map{
			"message":   "OTP verified successfully",
			"token":     res.Token,
			"expiresAt": res.ExpiresAt,
			"user": echo.Map{
				"email":             res.User.Email,
				"isVerified":        res.User.IsVerified,
				"hasSubmittedMarks": res.User.HasSubmittedMarks,
			},
		})
	}
}

// meHandler echoes the caller's credential claims.
func meHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := middleware.GetClaims(c)
		if claims == nil {
			return apperr.Unauthorized("No token provided, authorization denied")
		}
		return ok(c, http.StatusOK, echo.Map{
			"message": "Authenticated",
			"user": echo.Map{
				"userId":    claims.UserID,
				"email":     claims.Email,
				"expiresAt": claims.ExpiresAt.Time,
			},
		})
	}
}

// authThrottle limits /api/auth per client IP.
func authThrottle(perSecond float64, burst int) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperr.Forbidden("Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperr.RateLimited("Too many requests. Please try again later.")
		},
	})
}

func registerAuthRoutes(g *echo.Group, otpSvc *services.OTPService, tokens *middleware.TokenManager, throttle echo.MiddlewareFunc) {
	auth := g.Group("/auth", throttle)

	auth.POST("/send-otp", sendOTPHandler(otpSvc))
	auth.POST("/verify-otp", verifyOTPHandler(otpSvc))
	auth.GET("/me", meHandler(), tokens.JWTMiddleware())
}
