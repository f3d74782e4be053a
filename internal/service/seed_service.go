package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/olegsazonov/emergency-backend/internal/logger"
	"github.com/olegsazonov/emergency-backend/internal/models"
	"github.com/olegsazonov/emergency-backend/internal/repository"
)

// defaultAccount описывает служебную учётную запись, создаваемую при старте.
type defaultAccount struct {
	Email    string
	Username string
	Password string
	Role     string
}

var defaultAccounts = []defaultAccount{
	{Email: "admin@emergency.local", Username: "admin", Password: "admin123admin", Role: models.RoleAdmin},
	{Email: "responder@emergency.local", Username: "responder", Password: "responder123", Role: models.RoleResponder},
}

// SeedService создаёт служебные учётные записи при первом запуске.
type SeedService struct {
	userRepo SeedUserRepository
}

// SeedUserRepository — подмножество хранилища пользователей, нужное сидеру.
type SeedUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// NewSeedService создаёт сервис начального наполнения.
func NewSeedService(userRepo SeedUserRepository) *SeedService {
	return &SeedService{userRepo: userRepo}
}

// EnsureDefaultAccounts гарантирует наличие администратора и дежурного
// спасателя. Повторный вызов ничего не меняет.
func (s *SeedService) EnsureDefaultAccounts(ctx context.Context) error {
	log := logger.WithComponent("seed")

	for _, acc := range defaultAccounts {
		_, err := s.userRepo.GetByEmail(ctx, acc.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("seed service: проверка %s: %w", acc.Email, err)
		}

		passHash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed service: хеширование пароля: %w", err)
		}

		user := &models.User{
			Email:        acc.Email,
			Username:     acc.Username,
			PasswordHash: string(passHash),
			Role:         acc.Role,
		}

		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("seed service: создание %s: %w", acc.Email, err)
		}

		log.WithField("email", acc.Email).WithField("role", acc.Role).
			Info("создана служебная учётная запись")
	}

	return nil
}
