package middleware

import (
	"net/http"
	"strings"

	pkgAuth "deligma/pkg/auth"
	"deligma/pkg/config"
	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/logger"
	"deligma/pkg/responses"
)

// Auth validates a bearer token and seeds the request context with the admin claims.
func Auth(cfg config.JWTConfig, resp *responses.Writer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
				raw = strings.TrimSpace(raw[7:])
			}
			if raw == "" {
				resp.Error(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Token no proporcionado"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, raw)
			if err != nil {
				resp.Error(r.Context(), w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Token inválido o expirado"))
				return
			}

			ctx := WithAdmin(r.Context(), claims.AdminID.String(), claims.Username, claims.Role)
			if logg != nil {
				ctx = logg.WithAdmin(ctx, claims.AdminID.String(), claims.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
