// service содержит бизнес-логику ядра аутентификации магазина:
// регистрацию/аутентификацию пользователей, выпуск/ротацию/отзыв токенов,
// операции над профилем и работу с хранилищем через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Ожидаемые отказы (неверный пароль, отозванный токен) — это возвращаемые
//     sentinel-ошибки, а не panic; HTTP-слой маппит их в статусы
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"auth-service/internal/config"
	"auth-service/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Наружу не различаем "нет пользователя" и "не тот пароль". HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи
	// или отсутствует в хранилище. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен отозван (logout/ротация) и недействителен
	// независимо от срока. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP 400.
	ErrEmailTaken = errors.New("email already taken")

	// ErrSessionConflict — исчерпаны попытки сохранить новый refresh-токен
	// из-за конкурентных логинов того же пользователя либо коллизии хэша.
	// HTTP 500.
	ErrSessionConflict = errors.New("refresh session conflict")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrEmptyName — имя или фамилия пустые. HTTP 400.
	ErrEmptyName = errors.New("name is empty")

	// ErrUnknownRole — запрошена роль, неизвестная системе. HTTP 400.
	ErrUnknownRole = errors.New("unknown role")

	// ErrUserNotFound — пользователь не найден (профиль/админ-операции). HTTP 404.
	ErrUserNotFound = errors.New("user not found")
)

// Service описывает бизнес-логику ядра аутентификации.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}
