package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "fundforge/pkg/domain"
	"fundforge/pkg/requestcontext"
)

// JWTValidator validates a bearer token and returns the contributor it
// identifies. Implemented by jwtauth.Service; fakes in tests.
type JWTValidator interface {
	Validate(token string) (id.ContributorID, error)
}

// RequireAuth validates the Authorization bearer token and places the
// contributor ID in the request context. Unauthenticated requests get 401.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, "missing bearer token")
				return
			}
			contributor, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(r.Context(), "token validation failed",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err.Error(),
				)
				writeAuthError(w, "invalid token")
				return
			}
			ctx := requestcontext.WithContributorID(r.Context(), contributor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Claims are the JWT claims issued to contributors. The subject is the
// contributor ID.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService validates HS256 contributor tokens.
type JWTService struct {
	signingKey []byte
}

func NewJWTService(signingKey string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey)}
}

func (s *JWTService) Validate(tokenString string) (id.ContributorID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		return id.ContributorID{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.ContributorID{}, jwt.ErrTokenInvalidClaims
	}
	return id.ParseContributorID(claims.Subject)
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
