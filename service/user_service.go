package service

import (
	"context"
	"fmt"
	"strings"

	"raffler/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// userService implements the UserService interface
type userService struct {
	uowFactory UnitOfWorkFactory
	validate   *validator.Validate
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory) UserService {
	return &userService{
		uowFactory: uowFactory,
		validate:   newValidator(),
	}
}

// Create registers a new user. Phone and email must be unique.
func (s *userService) Create(ctx context.Context, input models.CreateUserInput) (*models.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user := &models.User{
		Name:  input.Name,
		Phone: input.Phone,
		Email: input.Email,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// Get returns a user by ID
func (s *userService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, models.NewNotFound("user %s not found", id)
	}

	return user, nil
}
