package auth

import (
	"time"

	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// User is a terminal account. One account per station role is typical; the
// admin account doubles as the configuration login.
type User struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Role         shared.Role `json:"role"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
