package storage

import (
	"auth-service/internal/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/refresh-token/активная сессия).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateUser обновляет профильные поля пользователя (имя, фамилия, email).
	UpdateUser(ctx context.Context, user *models.User) error
	// UpdateUserRole меняет роль пользователя.
	UpdateUserRole(ctx context.Context, id uuid.UUID, role models.Role) error
	// DeleteUser удаляет пользователя; его refresh-токены удаляются каскадно.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken атомарно отзывает все активные токены пользователя
	// и сохраняет новый (политика "одна активная сессия").
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshTokenIfActive пытается отозвать токен, если он ещё активен.
	RevokeRefreshTokenIfActive(ctx context.Context, hash string) (bool, error)
	// RevokeAllUserTokens отзывает все активные токены пользователя.
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
	// DeleteExpiredTokens удаляет все просроченные токены и возвращает их число.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
