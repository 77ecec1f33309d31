package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/httpio"
)

// CookieName is the cookie carrying the token for browser clients.
const CookieName = "token"

// Verifier validates a raw token into a Principal.
type Verifier interface {
	Verify(raw string) (Principal, error)
}

// Authenticate rejects requests without a valid token. The token is read
// from the Authorization bearer header first, then from the token cookie.
func Authenticate(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				httpio.WriteError(w, r, logger, apperror.Unauthorized("login first to access this resource"))
				return
			}

			principal, err := verifier.Verify(raw)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", slog.Any("error", err))
				httpio.WriteError(w, r, logger, apperror.Unauthorized("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole must run after Authenticate.
func RequireRole(logger *slog.Logger, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				httpio.WriteError(w, r, logger, apperror.Unauthorized("login first to access this resource"))
				return
			}

			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			httpio.WriteError(w, r, logger, apperror.Forbidden("role "+string(principal.Role)+" is not allowed to access this resource"))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}

	return ""
}

// SetCookie writes the token cookie set on login.
func SetCookie(w http.ResponseWriter, token string, tokens *Tokens, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the token cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
