// csrf реализует double-submit защиту от CSRF для мутирующих запросов.
//
// Схема: сервер выдаёт подписанный токен (nonce + момент выпуска) в читаемой
// куке и одновременно запоминает его за сессией на своей стороне; клиент
// обязан вернуть токен в заголовке. Валидация требует и корректной подписи,
// и точного совпадения с токеном сессии: криптографически валидный токен,
// выпущенный для чужой сессии, не проходит.
//
// Bearer-аутентификация сама по себе устойчива к CSRF, но refresh-токен
// живёт в куке и отправляется браузером автоматически — отсюда и необходимость
// этой защиты.
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"auth-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

type csrfClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// Guard выпускает и проверяет CSRF-токены. Конструируется на старте процесса
// и передаётся в middleware явно; глобального состояния нет.
type Guard struct {
	store SessionStore
	cfg   config.CSRFConfig
}

// NewGuard создаёт новый Guard поверх серверного хранилища сессий.
func NewGuard(store SessionStore, cfg config.CSRFConfig) *Guard {
	return &Guard{store: store, cfg: cfg}
}

// TokenTTL возвращает срок жизни CSRF-токена (он же TTL куки).
func (g *Guard) TokenTTL() time.Duration {
	return g.cfg.TokenTTL
}

// Issue возвращает CSRF-токен сессии. Пока за сессией числится непросроченный
// токен, он переиспользуется: повторные GET не порождают новых токенов.
func (g *Guard) Issue(ctx context.Context, sessionID string) (string, error) {
	const op = "csrf.Issue"

	if token, ok, err := g.store.Get(ctx, sessionID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	} else if ok && g.verify(token) {
		return token, nil
	}

	token, err := g.mint()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := g.store.Set(ctx, sessionID, token, g.cfg.TokenTTL); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Validate проверяет предъявленный токен против токена сессии.
// false на любом отказе: нет токена, нет сессии, битая подпись, возраст
// больше TTL, несовпадение с токеном сессии. Причина отказа наружу
// не сообщается.
func (g *Guard) Validate(ctx context.Context, sessionID, presented string) bool {
	if presented == "" || sessionID == "" {
		return false
	}

	stored, ok, err := g.store.Get(ctx, sessionID)
	if err != nil || !ok {
		return false
	}

	if !g.verify(presented) {
		return false
	}

	// Точное совпадение обязательно: подпись подтверждает лишь происхождение
	// токена, но не его принадлежность этой сессии.
	return hmac.Equal([]byte(presented), []byte(stored))
}

// mint подписывает новый токен со случайным nonce и временем выпуска.
func (g *Guard) mint() (string, error) {
	const op = "csrf.mint"

	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	claims := csrfClaims{
		Nonce: hex.EncodeToString(b[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.cfg.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// verify проверяет подпись токена и его возраст относительно TTL.
func (g *Guard) verify(token string) bool {
	parsed, err := jwt.ParseWithClaims(token, &csrfClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, jwt.ErrTokenSignatureInvalid
			}

			return []byte(g.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil || !parsed.Valid {
		return false
	}

	claims, ok := parsed.Claims.(*csrfClaims)
	if !ok || claims.Nonce == "" || claims.IssuedAt == nil {
		return false
	}

	// Дополнительная проверка возраста поверх exp в claims.
	return time.Since(claims.IssuedAt.Time) <= g.cfg.TokenTTL
}
