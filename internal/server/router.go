package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"deligma/internal/admin"
	"deligma/internal/uploads"
	"deligma/internal/walloffame"
	"deligma/pkg/auth"
	"deligma/pkg/config"
	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/logger"
	"deligma/pkg/middleware"
	"deligma/pkg/responses"
	"deligma/pkg/storage"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router mounts.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      Pinger
	Members walloffame.Store
	Admins  admin.Service
	Images  *storage.Disk
	Metrics http.Handler
}

// NewRouter builds the public API.
func NewRouter(d Deps) http.Handler {
	resp := responses.NewWriter(d.Logger, !d.Config.App.IsProd())

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(resp),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
		middleware.CORS(d.Config.CORS.AllowedOrigins),
	)

	authenticate := middleware.Auth(d.Config.JWT, resp, d.Logger)
	requireAdmin := func(next http.Handler) http.Handler {
		return authenticate(middleware.RequireAnyRole(resp, auth.RoleAdmin, auth.RoleSuperAdmin)(next))
	}
	upload := uploads.Image(d.Images, d.Config.Uploads.MaxBytes, resp)

	members := walloffame.NewHandler(
		d.Members,
		walloffame.NewAssetCoordinator(d.Images, d.Logger),
		resp,
	)
	admins := admin.NewHandler(d.Admins, resp)

	r.Get("/api/health", healthHandler(d.DB, resp))
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", admins.HandleLogin)
		r.With(authenticate).Get("/profile", admins.HandleProfile)
	})
	r.Route("/api/muro-fama", func(r chi.Router) {
		members.Routes(r, requireAdmin, upload)
	})
	r.Route("/api/members", func(r chi.Router) {
		members.Routes(r, requireAdmin, upload)
	})

	r.Handle("/uploads/muro_fama/*", http.StripPrefix("/uploads/muro_fama/", http.FileServer(http.Dir(d.Images.Root()))))
	if d.Metrics != nil {
		r.Handle(d.Config.Telemetry.MetricsPath, d.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.Error(r.Context(), w, pkgerrors.NotFound("Ruta no encontrada"))
	})
	return r
}

type healthStatus struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

func healthHandler(db Pinger, resp *responses.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			resp.Error(r.Context(), w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "database unreachable"))
			return
		}
		resp.Success(w, healthStatus{Status: "OK", Database: "connected", Timestamp: time.Now().UTC()})
	}
}
