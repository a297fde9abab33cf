package luckyreel

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/luckyreel/validate"
)

const adminSubject = "admin"

var (
	errTokenInvalid = errors.New("token invalid")
	errTokenExpired = errors.New("token expired")
)

// tokenSigner issues and verifies the HS256 admin tokens.
type tokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func newTokenSigner(secret, issuer string, ttl time.Duration) *tokenSigner {
	return &tokenSigner{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Sign returns a token for the admin and its expiry.
func (s *tokenSigner) Sign() (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer, subject and expiry.
func (s *tokenSigner) Verify(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithSubject(adminSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errTokenInvalid
	}
	if !parsed.Valid {
		return nil, errTokenInvalid
	}
	return claims, nil
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries the admin token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// checkPassword applies the per-IP limiter: only failed attempts count.
func (a *App) checkPassword(c echo.Context, pass string) (bool, error) {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return false, echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		return true, nil
	}
	a.loginLimiter.Record(ip)
	log.Warn().Str("ip", ip).Msg("failed admin login")
	return false, nil
}

func (a *App) handleLogin(c echo.Context) error {
	var req LoginRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	ok, err := a.checkPassword(c, req.Password)
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid password")
	}
	token, exp, err := a.tokens.Sign()
	if err != nil {
		return err
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp.UTC()})
}

func (a *App) handleVerify(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"valid": true})
}
