// Package auth provides credential verification, session token issuance
// and the middleware that resolves a bearer token into the caller's user
// ID for every protected request.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/kolekt/internal/logger"
	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

type userKeeper interface {
	GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error)
	GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error)
}

// ErrNoToken is returned when a protected request carries no bearer token.
var ErrNoToken = errors.New("unauthenticated")

// ErrInvalidToken is returned when the token signature or expiry check fails.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the session token claims: the standard set plus the
// authenticated user's identifier. The user ID is taken exclusively from
// here, never from request bodies.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// Auth verifies credentials, issues signed session tokens and
// authenticates incoming requests.
type Auth struct {
	db                    userKeeper
	tokenSigningSecretKey []byte
	tokenTTL              time.Duration
}

// New creates an Auth handler with the given user data access layer,
// HMAC signing key and token lifetime.
func New(
	db userKeeper,
	tokenSigningSecretKey []byte,
	tokenTTL time.Duration,
) *Auth {
	return &Auth{
		db:                    db,
		tokenSigningSecretKey: tokenSigningSecretKey,
		tokenTTL:              tokenTTL,
	}
}

// Authenticate checks the username/password pair and issues a signed,
// time-limited session token. An unknown username and a wrong password are
// indistinguishable to the caller.
func (a *Auth) Authenticate(ctx context.Context, username, password string) (string, error) {
	usr, found, err := a.db.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if !found {
		// an unknown username still pays the bcrypt cost
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
			[]byte(password),
		)
		return "", models.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	return a.BuildJWTString(usr.ID)
}

// BuildJWTString issues a signed session token for the given user ID.
func (a *Auth) BuildJWTString(userID int64) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(a.tokenSigningSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken validates the token signature and expiry and returns
// the embedded user ID.
func (a *Auth) GetUserIDFromToken(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.tokenSigningSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// HashPassword produces the bcrypt hash stored for a user's password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// AuthenticateUser is the HTTP middleware guarding protected routes. It
// requires an `Authorization: Bearer <token>` header, validates the token
// and stores the resolved user ID in the request context. Requests without
// a token get 401 "unauthenticated"; requests with a bad or expired token
// get 401 "invalid token".
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString, err := getBearerToken(request)
		if err != nil {
			writeJSONError(response, http.StatusUnauthorized, ErrNoToken.Error())
			return
		}

		userID, err := a.GetUserIDFromToken(tokenString)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.GetUserIDFromToken()`: ", zap.Error(err))
			writeJSONError(response, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		requestWithCtx := request.WithContext(ctx)

		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}

// UserIDFromContext extracts the authenticated user's ID stored by
// AuthenticateUser.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)

	return userID, ok
}

func getBearerToken(request *http.Request) (string, error) {
	authHeader := request.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrNoToken
	}

	return strings.TrimPrefix(authHeader, "Bearer "), nil
}

func writeJSONError(response http.ResponseWriter, status int, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	_ = json.NewEncoder(response).Encode(models.ErrorResponse{Error: message})
}
