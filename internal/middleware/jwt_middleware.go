package middleware

import (
	"errors"
	"strings"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	claimsKey = "auth_claims"
	issuer    = "marks-api"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims defines JWT payload structure. Subject carries the user ID too.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and checks session credentials with HS256.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a signed token for the user and returns its expiry.
func (m *TokenManager) GenerateToken(userID, email string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// ParseToken validates signature, algorithm and expiry.
func (m *TokenManager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWTMiddleware validates the bearer token and stores the claims on the context.
func (m *TokenManager) JWTMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return apperr.Unauthorized("No token provided, authorization denied")
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return apperr.Unauthorized("Invalid authorization header")
			}
			claims, err := m.ParseToken(parts[1])
			if err != nil {
				return apperr.Wrap(apperr.KindUnauthorized, "Token is not valid", err)
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// Helper to extract claims
func GetClaims(c echo.Context) *Claims {
	if cl, ok := c.Get(claimsKey).(*Claims); ok {
		return cl
	}
	return nil
}

// AdminOnly lets through the listed emails. An empty list admits every
// authenticated caller. Must run after JWTMiddleware.
func AdminOnly(admins []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a = model.NormalizeEmail(a); a != "" {
			allowed[a] = struct{}{}
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := GetClaims(c)
			if claims == nil {
				return apperr.Unauthorized("No token provided, authorization denied")
			}
			if len(allowed) == 0 {
				return next(c)
			}
			if _, ok := allowed[model.NormalizeEmail(claims.Email)]; !ok {
				return apperr.Forbidden("Admin access required")
			}
			return next(c)
		}
	}
}
