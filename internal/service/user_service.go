package service

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"rentescrow/internal/domain"
	"rentescrow/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type UserService struct {
	repo     domain.UserRepository
	validate *validator.Validate
	logger   *zerolog.Logger
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	validate := validator.New()
	// ошибки называют поля так же, как JSON
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return validate
}

// fieldError turns a validator failure into a ValidationError naming the first bad field.
func fieldError(err error, what string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return validationError(CodeValidation, "invalid %s", fieldErrs[0].Field())
	}
	return validationError(CodeValidation, "invalid %s", what)
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		validate: newValidator(),
		logger:   logger,
	}
}

// SaveUser upserts a payer profile keyed by email.
func (s *UserService) SaveUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	user.Phone = strings.TrimSpace(user.Phone)

	if err := s.validate.Struct(user); err != nil {
		return fieldError(err, "user")
	}

	if err := s.repo.CreateOrUpdateUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("email", user.Email).Msg("failed to save user")
		return internal("save user", err)
	}
	return nil
}
