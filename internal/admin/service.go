package admin

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for administrator accounts.
type Service interface {
	CreateUser(ctx context.Context, in NewUser) (*User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}
