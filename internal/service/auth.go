package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
	"taskboard/pkg/util"
)

type AuthService struct {
	users     UserStore
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthService(users UserStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a new user and returns it with a fresh token.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, string, error) {
	email = normalizeEmail(email)
	if len(password) < 6 {
		return nil, "", apperr.Validation("Validation failed",
			apperr.FieldError{Field: "password", Message: "Min 6 characters"})
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, "", apperr.Internal("failed to look up user", err)
	}
	if existing != nil {
		return nil, "", apperr.Conflict("User already exists")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, "", apperr.Internal("failed to hash password", err)
	}

	u := &model.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, "", apperr.Conflict("User already exists")
		}
		return nil, "", apperr.Internal("failed to create user", err)
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("User registered", zap.String("user_id", u.ID.String()))
	return u, token, nil
}

// Login checks user credentials and returns the user with a JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, "", apperr.Unauthorized("Invalid email or password")
		}
		return nil, "", apperr.Internal("failed to look up user", err)
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return nil, "", apperr.Unauthorized("Invalid email or password")
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("Not authorized")
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	return u, nil
}

// Authenticate resolves a bearer token to the id of an existing user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := util.ParseJWT(token, s.jwtSecret)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("Invalid or expired token")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("Invalid or expired token")
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return uuid.Nil, apperr.Unauthorized("Invalid Token")
		}
		return uuid.Nil, apperr.Internal("failed to load user", err)
	}
	return userID, nil
}

func (s *AuthService) issue(u *model.User) (string, error) {
	token, err := util.GenerateJWT(u.ID.String(), s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", apperr.Internal("failed to sign token", err)
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
