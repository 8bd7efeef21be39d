package service

import (
	"auth-service/internal/config"
	"auth-service/internal/models"
	"auth-service/internal/storage"
	"auth-service/mocks"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "unit-access-secret",
		RefreshSecret:   "unit-refresh-secret",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "auth-service",
		Audience:        []string{"storefront"},
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	svc := New(st, testCfg())
	return svc, st, ctrl
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}

func TestRegisterUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	email := "User@Example.com"
	norm := "user@example.com"
	pw := "Abcdef1!"

	// Сначала UserByEmail → ErrNotFound, потом SaveUser, потом generateRefreshToken → SaveRefreshToken.
	st.EXPECT().UserByEmail(gomock.Any(), norm).Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, u *models.User) error {
			require.Equal(t, norm, u.Email)
			require.Equal(t, models.RoleClient, u.Role)
			require.NotEqual(t, pw, u.PasswordHash)
			return nil
		})
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, user, err := svc.RegisterUser(ctx, "Ivan", "Petrov", email, pw)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
	require.WithinDuration(t, time.Now().Add(svc.cfg.AccessTokenTTL), tp.AccessExpiresAt, 2*time.Second)
}

func TestRegisterUser_EmptyName(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "  ", "Petrov", "u@e.com", "Abcdef1!")
	require.ErrorIs(t, err, ErrEmptyName)

	_, _, err = svc.RegisterUser(context.Background(), "Ivan", "", "u@e.com", "Abcdef1!")
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestRegisterUser_InvalidEmail(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "Ivan", "Petrov", "not-an-email", "Abcdef1!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRegisterUser_WeakOrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "Ivan", "Petrov", "u@e.com", "")
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, _, err = svc.RegisterUser(context.Background(), "Ivan", "Petrov", "u@e.com", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	// Нет спецсимвола.
	_, _, err = svc.RegisterUser(context.Background(), "Ivan", "Petrov", "u@e.com", "Abcdefg1")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUser_EmailAlreadyExists_OnLookup(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Если UserByEmail вернул пользователя (err == nil) - считается занятым email.
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: uuid.New(), Email: "user@example.com"}, nil)

	_, _, err := svc.RegisterUser(context.Background(), "Ivan", "Petrov", "user@example.com", "Abcdef1!")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_SaveUserAlreadyExists_MapsToEmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists)

	_, _, err := svc.RegisterUser(context.Background(), "Ivan", "Petrov", "user@example.com", "Abcdef1!")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	pw := "Abcdef1!"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: mustHashPW(t, pw),
		Role:         models.RoleClient,
	}

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, got, err := svc.LoginUser(context.Background(), "User@Example.com", pw)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
}

func TestLoginUser_WrongPassword(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: mustHashPW(t, "Abcdef1!"),
	}

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(user, nil)

	_, _, err := svc.LoginUser(context.Background(), "user@example.com", "Wrong1!pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_UnknownEmail(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").
		Return(nil, storage.ErrNotFound)

	// "Нет пользователя" неотличимо от "не тот пароль".
	_, _, err := svc.LoginUser(context.Background(), "ghost@example.com", "Abcdef1!")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_MalformedEmail(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.LoginUser(context.Background(), "not-an-email", "Abcdef1!")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

/// TestRefreshToken_OK — строгая ротация: предъявленный токен потребляется,
// выпускается новая пара.
func TestRefreshToken_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "user@example.com", Role: models.RoleClient}

	plain, err := svc.mintRefreshToken(user.ID, time.Now().UTC())
	require.NoError(t, err)
	hash := hashRefreshToken(plain)

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash,
		UserID:           user.ID,
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hash).Return(true, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, got, err := svc.RefreshToken(ctx, plain)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEqual(t, plain, tp.RefreshToken)
}

func TestRefreshToken_UnknownToken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().RefreshTokenByHash(gomock.Any(), gomock.Any()).
		Return(nil, storage.ErrNotFound)

	_, _, err := svc.RefreshToken(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken_Revoked(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	plain, err := svc.mintRefreshToken(userID, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hashRefreshToken(plain)).
		Return(&models.RefreshToken{
			RefreshTokenHash: hashRefreshToken(plain),
			UserID:           userID,
			ExpiresAt:        time.Now().UTC().Add(time.Hour),
			Revoked:          true,
		}, nil)

	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

// TestRefreshToken_ExpiredInStorage — просроченная запись отклоняется до
// криптографической проверки, даже если подпись токена валидна.
func TestRefreshToken_ExpiredInStorage(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	plain, err := svc.mintRefreshToken(userID, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hashRefreshToken(plain)).
		Return(&models.RefreshToken{
			RefreshTokenHash: hashRefreshToken(plain),
			UserID:           userID,
			ExpiresAt:        time.Now().UTC().Add(-time.Minute),
		}, nil)

	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.ErrorIs(t, err, ErrTokenExpired)
}

// TestRefreshToken_UserDeletedConcurrently — пользователь удалён между
// проверкой токена и чтением профиля (каскадное удаление аккаунта):
// клиент получает обычный ErrInvalidToken, а не внутреннюю ошибку.
func TestRefreshToken_UserDeletedConcurrently(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	plain, err := svc.mintRefreshToken(userID, time.Now().UTC())
	require.NoError(t, err)
	hash := hashRefreshToken(plain)

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash,
		UserID:           userID,
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(nil, storage.ErrNotFound)

	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.ErrorIs(t, err, ErrInvalidToken)
}

/// TestRefreshToken_LostRace — конкурирующая ротация уже потребила токен:
// условный UPDATE не нашёл активной строки.
func TestRefreshToken_LostRace(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{ID: uuid.New(), Role: models.RoleClient}
	plain, err := svc.mintRefreshToken(user.ID, time.Now().UTC())
	require.NoError(t, err)
	hash := hashRefreshToken(plain)

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		RefreshTokenHash: hash,
		UserID:           user.ID,
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hash).Return(false, nil)

	_, _, err = svc.RefreshToken(context.Background(), plain)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevokeToken_Idempotent(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Уже отозван — не ошибка.
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), gomock.Any()).Return(false, nil)
	require.NoError(t, svc.RevokeToken(context.Background(), "some-token"))

	// Не существует — тоже не ошибка.
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), gomock.Any()).
		Return(false, storage.ErrNotFound)
	require.NoError(t, svc.RevokeToken(context.Background(), "ghost-token"))
}

func TestRevokeAllUserTokens_PropagatesError(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	st.EXPECT().RevokeAllUserTokens(gomock.Any(), userID).Return(errors.New("db down"))

	require.Error(t, svc.RevokeAllUserTokens(context.Background(), userID))
}

func TestProfile_NotFound(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	st.EXPECT().UserByID(gomock.Any(), userID).Return(nil, storage.ErrNotFound)

	_, err := svc.Profile(context.Background(), userID)
	require.ErrorIs(t, err, ErrUserNotFound)
}

// TestUpdateProfile_KeepsEmptyFields — пустые поля означают "оставить как есть".
func TestUpdateProfile_KeepsEmptyFields(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{
		ID:        uuid.New(),
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "user@example.com",
	}

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, u *models.User) error {
			require.Equal(t, "Maria", u.FirstName)
			require.Equal(t, "Petrov", u.LastName)
			require.Equal(t, "user@example.com", u.Email)
			return nil
		})

	got, err := svc.UpdateProfile(context.Background(), user.ID, "Maria", "", "")
	require.NoError(t, err)
	require.Equal(t, "Maria", got.FirstName)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{ID: uuid.New(), FirstName: "Ivan", LastName: "Petrov", Email: "user@example.com"}

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

	_, err := svc.UpdateProfile(context.Background(), user.ID, "", "", "taken@example.com")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestDeleteAccount_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	st.EXPECT().RevokeAllUserTokens(gomock.Any(), userID).Return(nil)
	st.EXPECT().DeleteUser(gomock.Any(), userID).Return(nil)

	require.NoError(t, svc.DeleteAccount(context.Background(), userID))
}

func TestDeleteAccount_NotFound(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	st.EXPECT().RevokeAllUserTokens(gomock.Any(), userID).Return(nil)
	st.EXPECT().DeleteUser(gomock.Any(), userID).Return(storage.ErrNotFound)

	require.ErrorIs(t, svc.DeleteAccount(context.Background(), userID), ErrUserNotFound)
}

func TestChangeUserRole_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	st.EXPECT().UpdateUserRole(gomock.Any(), user.ID, models.RoleAdmin).Return(nil)
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	got, err := svc.ChangeUserRole(context.Background(), user.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, got.Role)
}

func TestChangeUserRole_UnknownRole(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.ChangeUserRole(context.Background(), uuid.New(), models.Role("superuser"))
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestCleanupExpiredTokens_ReturnsCount(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	now := time.Now().UTC()
	st.EXPECT().DeleteExpiredTokens(gomock.Any(), now).Return(int64(7), nil)

	deleted, err := svc.CleanupExpiredTokens(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(7), deleted)
}
