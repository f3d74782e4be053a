package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/olegsazonov/emergency-backend/internal/models"
	"github.com/olegsazonov/emergency-backend/internal/pkg/apperror"
	"github.com/olegsazonov/emergency-backend/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail    map[string]*models.User
	usersByUsername map[string]*models.User
	usersByID       map[uuid.UUID]*models.User
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail:    make(map[string]*models.User),
		usersByUsername: make(map[string]*models.User),
		usersByID:       make(map[uuid.UUID]*models.User),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByUsername[user.Username] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if user, ok := m.usersByUsername[username]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func newAuthService(repo *mockAuthRepository) *AuthService {
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	return NewAuthService(repo, tokenManager)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepository()
	service := newAuthService(repo)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		Email:    "reporter@example.com",
		Username: "reporter",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if res.User.ID == uuid.Nil {
		t.Fatalf("user ID должен быть установлен")
	}
	if res.User.Role != models.RoleUser {
		t.Fatalf("самостоятельная регистрация даёт роль user, получено %s", res.User.Role)
	}
	if res.TokenPair == nil || res.TokenPair.AccessToken == "" || res.TokenPair.RefreshToken == "" {
		t.Fatalf("должна быть выпущена пара токенов")
	}
	if res.User.PasswordHash == "password123" {
		t.Fatalf("пароль не должен храниться открытым текстом")
	}

	loginRes, err := service.Login(ctx, LoginInput{
		Email:    "reporter@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if loginRes.User.ID != res.User.ID {
		t.Fatalf("login вернул другого пользователя")
	}
	if loginRes.User.LastLoginAt == nil {
		t.Fatalf("last_login_at должен обновиться при входе")
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepository()
	service := newAuthService(repo)

	ctx := context.Background()
	input := RegisterInput{Email: "dup@example.com", Username: "first", Password: "password123"}
	if _, err := service.Register(ctx, input); err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	input.Username = "second"
	if _, err := service.Register(ctx, input); err == nil {
		t.Fatalf("повторная регистрация email должна быть отклонена")
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	repo := newMockAuthRepository()
	service := newAuthService(repo)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"плохой email", RegisterInput{Email: "not-an-email", Username: "user1", Password: "password123"}},
		{"короткий пароль", RegisterInput{Email: "a@b.com", Username: "user1", Password: "short"}},
		{"короткий username", RegisterInput{Email: "a@b.com", Username: "ab", Password: "password123"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Register(ctx, tc.input); !apperror.IsValidation(err) {
				t.Fatalf("ожидалась ошибка валидации, получено %v", err)
			}
		})
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepository()
	service := newAuthService(repo)

	ctx := context.Background()
	if _, err := service.Register(ctx, RegisterInput{
		Email:    "user@example.com",
		Username: "someuser",
		Password: "password123",
	}); err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	_, err := service.Login(ctx, LoginInput{Email: "user@example.com", Password: "wrongpass1"})
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("ожидался ErrInvalidCredentials, получено %v", err)
	}

	// Несуществующий email неотличим от неверного пароля.
	_, err = service.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "password123"})
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("ожидался ErrInvalidCredentials, получено %v", err)
	}
}

func TestAuthService_LoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepository()
	service := newAuthService(repo)

	passHash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	blocked := &models.User{
		ID:           uuid.New(),
		Email:        "blocked@example.com",
		Username:     "blocked",
		PasswordHash: string(passHash),
		Role:         models.RoleUser,
		IsActive:     false,
	}
	repo.usersByEmail[blocked.Email] = blocked
	repo.usersByID[blocked.ID] = blocked

	_, err := service.Login(context.Background(), LoginInput{Email: blocked.Email, Password: "password123"})
	if !apperror.IsForbidden(err) {
		t.Fatalf("заблокированный аккаунт не должен входить, получено %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockAuthRepository()
	service := newAuthService(repo)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		Email:    "user@example.com",
		Username: "someuser",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	pair, err := service.Refresh(ctx, res.TokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("refresh должен выпустить новую пару токенов")
	}

	claims, err := service.tokenManager.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("новый access токен не прошёл проверку: %v", err)
	}
	if claims.UserID != res.User.ID || claims.Role != models.RoleUser {
		t.Fatalf("клеймы нового токена не совпадают с пользователем")
	}
}

func TestAuthService_RefreshGarbageToken(t *testing.T) {
	repo := newMockAuthRepository()
	service := newAuthService(repo)

	if _, err := service.Refresh(context.Background(), "not.a.token"); err == nil {
		t.Fatalf("мусорный refresh токен должен быть отклонён")
	}
}

func TestTokenManager_AccessRefreshNotInterchangeable(t *testing.T) {
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleResponder}

	pair, err := tokenManager.GeneratePair(user)
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}

	if _, err := tokenManager.ParseAccess(pair.RefreshToken); err == nil {
		t.Fatalf("refresh токен не должен приниматься как access")
	}
	if _, err := tokenManager.ParseRefresh(pair.AccessToken); err == nil {
		t.Fatalf("access токен не должен приниматься как refresh")
	}

	claims, err := tokenManager.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access returned error: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != models.RoleResponder {
		t.Fatalf("клеймы не совпадают: %+v", claims)
	}
}
