package admin

import (
	"time"

	"github.com/google/uuid"
)

// User is an administrator of the content API.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"nombre_completo"`
	Role      string    `json:"rol"`
	Active    bool      `json:"activo"`
	CreatedAt time.Time `json:"fecha_creacion"`
}

// Credential holds a user's Argon2id password hash.
type Credential struct {
	UserID       uuid.UUID `json:"-"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}

// NewUser is the input for seeding an administrator.
type NewUser struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	FullName string `json:"nombre_completo" validate:"max=100"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"rol" validate:"required,oneof=admin superadmin"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"usuario"`
}
