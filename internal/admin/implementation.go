package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/time/rate"

	pkgAuth "deligma/pkg/auth"
	"deligma/pkg/config"
	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/persistence"
	"deligma/pkg/validators"
)

const uniqueViolation = "23505"

var errInvalidCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "Credenciales inválidas")

// service implements the Service interface.
type service struct {
	gateway     persistence.Gateway
	jwt         config.JWTConfig
	rateLimiter *rate.Limiter
	now         func() time.Time
}

// NewService creates the admin account service. Logins share one
// process-wide token bucket.
func NewService(gateway persistence.Gateway, jwtCfg config.JWTConfig, limits config.RateLimitConfig) Service {
	window := limits.LoginWindow
	if window <= 0 {
		window = time.Minute
	}
	burst := limits.LoginBurst
	if burst <= 0 {
		burst = 5
	}
	return &service{
		gateway:     gateway,
		jwt:         jwtCfg,
		rateLimiter: rate.NewLimiter(rate.Every(window/time.Duration(burst)), burst),
		now:         time.Now,
	}
}

// CreateUser stores a new administrator with a hashed password.
func (s *service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validators.Struct(in); err != nil {
		return nil, err
	}

	hash, salt, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:       uuid.New(),
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
		Role:     in.Role,
		Active:   true,
	}
	err = s.gateway.QueryRow(ctx, `
		INSERT INTO admin_users (id, username, email, full_name, password_hash, salt, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, user.ID, user.Username, user.Email, user.FullName, hash, salt, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "El usuario o email ya existe")
		}
		return nil, fmt.Errorf("failed to insert admin user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if !s.rateLimiter.Allow() {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "Demasiados intentos, intenta más tarde")
	}

	user, cred, err := s.getUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !user.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Usuario inactivo")
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, errInvalidCredentials
	}

	token, err := pkgAuth.MintAccessToken(s.jwt, s.now(), pkgAuth.AccessTokenPayload{
		AdminID:  user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mint token: %w", err)
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *service) getUserByUsername(ctx context.Context, username string) (*User, *Credential, error) {
	user := &User{}
	cred := &Credential{}
	err := s.gateway.QueryRow(ctx, `
		SELECT id, username, email, full_name, role, active, created_at, password_hash, salt
		FROM admin_users
		WHERE username = $1
	`, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&cred.PasswordHash,
		&cred.Salt,
	)
	if err != nil {
		return nil, nil, err
	}
	cred.UserID = user.ID
	return user, cred, nil
}

// GetUser retrieves an administrator by ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user := &User{}
	err := s.gateway.QueryRow(ctx, `
		SELECT id, username, email, full_name, role, active, created_at
		FROM admin_users
		WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NotFound("Usuario no encontrado")
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return user, nil
}
