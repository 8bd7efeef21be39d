package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль пользователя в магазине.
type Role string

const (
	// RoleClient — обычный покупатель (значение по умолчанию).
	RoleClient Role = "client"
	// RoleAdmin — администратор панели управления.
	RoleAdmin Role = "admin"
)

// Valid сообщает, известна ли роль системе.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// User - модель пользователя магазина.
//
// Роль назначается при создании (client) и меняется только админским
// эндпоинтом; подсистема токенов её лишь читает при выпуске claims.
type User struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
