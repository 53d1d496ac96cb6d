package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"deligma/internal/admin"
	"deligma/pkg/auth"
	"deligma/pkg/config"
	"deligma/pkg/logger"
	"deligma/pkg/migrate"
	"deligma/pkg/persistence"
)

func main() {
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "command: up|down|status|version|validate|create-admin")
	username := flag.String("username", "", "admin username (for create-admin)")
	email := flag.String("email", "", "admin email (for create-admin)")
	fullName := flag.String("name", "", "admin full name (for create-admin)")
	password := flag.String("password", "", "admin password (for create-admin)")
	role := flag.String("role", auth.RoleSuperAdmin, "admin role (for create-admin)")
	flag.Parse()

	if *cmd == "validate" {
		if err := migrate.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.WarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	db, err := persistence.Open(cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer db.Close()

	requireResource(ctx, logg, "database ping", db.Ping(ctx))
	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status", "version", "redo":
		if err := migrate.Run(ctx, db.SQL(), *cmd); err != nil {
			fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
			os.Exit(1)
		}

	case "create-admin":
		svc := admin.NewService(db, cfg.JWT, cfg.RateLimit)
		user, err := svc.CreateUser(ctx, admin.NewUser{
			Username: *username,
			Email:    *email,
			FullName: *fullName,
			Password: *password,
			Role:     *role,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create-admin failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin %s (%s) with role %s\n", user.Username, user.ID, user.Role)

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
