package service

import (
	"context"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/auth"
	"hesapduragi/internal/models"
	"hesapduragi/internal/store"
	"hesapduragi/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore covers user persistence for registration and login
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
}

// UserService handles the minimum user surface checkout depends on:
// registration, login and profile reads
type UserService struct {
	store  UserStore
	tokens *auth.Manager
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(store UserStore, tokens *auth.Manager) *UserService {
	return &UserService{
		store:  store,
		tokens: tokens,
		logger: util.GetLogger(),
	}
}

// RegisterRequest is a registration payload
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// LoginRequest is a login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResult carries the signed token and the user it belongs to
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a user and signs their first token
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("Bu e-posta adresi zaten kayıtlı")
		}
		return nil, apperrors.Internal(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return &AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and signs a token
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*AuthResult, error) {
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil {
		return nil, apperrors.Auth("E-posta veya şifre hatalı")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Auth("E-posta veya şifre hatalı")
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &AuthResult{Token: token, User: user}, nil
}

// Orders lists the caller's orders, newest first
func (s *UserService) Orders(ctx context.Context, buyerID string) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return orders, nil
}
