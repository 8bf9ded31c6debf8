package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diewo77/invoicegen/auth"
	"github.com/diewo77/invoicegen/internal/config"
	"github.com/diewo77/invoicegen/internal/models"
	"github.com/diewo77/invoicegen/internal/store"
	"github.com/diewo77/invoicegen/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Credentials is the sign-in and sign-up payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthService manages accounts and announces session changes on the broker.
type AuthService struct {
	users    store.Users
	events   auth.Broker
	validate *validation.Validator
	log      logrus.FieldLogger

	// Cost is the bcrypt cost used for new passwords.
	Cost int
}

func NewAuthService(users store.Users, events auth.Broker, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		users:    users,
		events:   events,
		validate: validation.NewValidator(),
		log:      log,
		Cost:     bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, c Credentials) (*models.User, error) {
	c.Email = normalizeEmail(c.Email)
	v := validation.Violations{}
	if err := s.validate.Struct(c, v); err != nil {
		return nil, err
	}
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}
	if _, err := s.users.FindUserByEmail(ctx, c.Email); err == nil {
		return nil, &AuthError{Code: "email_taken"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, &PersistenceError{Op: "find user", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.Cost)
	if err != nil {
		return nil, &AuthError{Code: "auth_failed", Err: err}
	}
	u := &models.User{Email: c.Email, Password: string(hash)}
	if err := s.users.InsertUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &AuthError{Code: "email_taken", Err: err}
		}
		config.LogError(s.log, "auth", "SignUp", "insert user", nil, err)
		return nil, &PersistenceError{Op: "create user", Err: err}
	}
	s.publish(ctx, auth.EventSignedIn, u.ID)
	return u, nil
}

// SignIn checks the password and announces the new session.
func (s *AuthService) SignIn(ctx context.Context, c Credentials) (*models.User, error) {
	email := normalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return nil, &AuthError{Code: "invalid_credentials"}
	}
	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &AuthError{Code: "invalid_credentials"}
		}
		return nil, &PersistenceError{Op: "find user", Err: err}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(c.Password)); err != nil {
		return nil, &AuthError{Code: "invalid_credentials"}
	}
	s.publish(ctx, auth.EventSignedIn, u.ID)
	return u, nil
}

// SignOut announces the end of a session.
func (s *AuthService) SignOut(ctx context.Context, userID uint) {
	if userID == 0 {
		return
	}
	s.publish(ctx, auth.EventSignedOut, userID)
}

// UserExists backs the session verifier.
func (s *AuthService) UserExists(ctx context.Context, userID uint) bool {
	ok, err := s.users.UserExists(ctx, userID)
	if err != nil {
		config.LogError(s.log, "auth", "UserExists", "count users", userID, err)
		return false
	}
	return ok
}

func (s *AuthService) publish(ctx context.Context, t auth.EventType, userID uint) {
	if s.events == nil {
		return
	}
	ev := auth.SessionEvent{Type: t, UserID: userID, At: time.Now()}
	if err := s.events.Publish(ctx, ev); err != nil {
		config.LogError(s.log, "auth", "publish", string(t), userID, err)
	}
}
