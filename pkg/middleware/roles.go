package middleware

import (
	"net/http"
	"slices"

	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/responses"
)

// RequireAnyRole rejects requests whose authenticated role is not listed.
func RequireAnyRole(resp *responses.Writer, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, RoleFromContext(r.Context())) {
				resp.Error(r.Context(), w, pkgerrors.New(pkgerrors.CodeForbidden, "No tienes permisos para esta acción"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
