// services/rental/internal/core/auth.go
package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RoleSystem is carried by internal callers such as the payment gateway
// subscriber and CLI jobs. It is never stored on a user.
const RoleSystem Role = "system"

// Session is the authenticated actor of a request. It is passed explicitly
// into every service call that acts on behalf of someone.
type Session struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"-"`
	IPAddress string    `json:"-"`
}

// SystemSession returns the actor used by background jobs.
func SystemSession(name string) *Session {
	return &Session{Role: RoleSystem, Email: name}
}

func (s *Session) IsAdmin() bool { return s != nil && s.Role == RoleAdmin }

// privileged sessions may act on any landlord's records.
func (s *Session) privileged() bool {
	return s != nil && (s.Role == RoleAdmin || s.Role == RoleSystem)
}

// owns reports whether the session may act for the given user.
func (s *Session) owns(userID uuid.UUID) bool {
	return s != nil && (s.UserID == userID || s.privileged())
}

func requireSession(actor *Session) error {
	if actor == nil {
		return ErrUnauthorized
	}
	return nil
}

func requireAdmin(actor *Session) error {
	if err := requireSession(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// SignUpInput is a new account request.
type SignUpInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
}

// --- Authentication Service Implementation ---

type AuthenticationService struct {
	store      Repository
	cache      Cache
	logger     *logrus.Logger
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
}

func NewAuthenticationService(store Repository, cache Cache, logger *logrus.Logger, tokenTTL time.Duration, bcryptCost int, now func() time.Time) *AuthenticationService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &AuthenticationService{
		store:      store,
		cache:      cache,
		logger:     logger,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		now:        now,
	}
}

// ValidatePassword enforces the minimum password strength.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return BusinessError{"AUTH_003", "password must be at least 8 characters"}
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return BusinessError{"AUTH_003", "password must contain letters and digits"}
	}
	return nil
}

func (s *AuthenticationService) SignUp(ctx context.Context, in SignUpInput) (*User, *Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, BusinessError{"AUTH_005", "invalid email address"}
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, nil, err
	}

	role := in.Role
	switch role {
	case "":
		role = RoleGuest
	case RoleGuest, RoleHost:
	default:
		return nil, nil, BusinessError{"AUTH_004", fmt.Sprintf("role %q cannot be self-assigned", role)}
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User signed up")

	return user, session, nil
}

func (s *AuthenticationService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	user.LastSignInAt = &now
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update sign-in time: %w", err)
	}

	return s.issueSession(ctx, user)
}

// SignOut revokes the session's token.
func (s *AuthenticationService) SignOut(ctx context.Context, actor *Session) error {
	if err := requireSession(actor); err != nil {
		return err
	}
	if err := s.store.RevokeAccessToken(ctx, actor.Token, s.now()); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	evict(ctx, s.cache, s.logger, sessionCacheKey(actor.Token))

	s.logger.WithField("user_id", actor.UserID).Info("User signed out")
	return nil
}

// Authenticate resolves a bearer token to its session.
func (s *AuthenticationService) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	now := s.now()
	key := sessionCacheKey(token)

	var cached Session
	if cachedJSON(ctx, s.cache, key, &cached) && cached.ExpiresAt.After(now) {
		cached.Token = token
		return &cached, nil
	}

	accessToken, err := s.store.GetAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if accessToken.RevokedAt != nil {
		return nil, ErrUnauthorized
	}
	if !accessToken.ExpiresAt.After(now) {
		return nil, ErrSessionExpired
	}

	if err := s.store.TouchAccessToken(ctx, token, now); err != nil {
		s.logger.WithError(err).Warn("Failed to update token last access")
	}

	session := newSession(&accessToken.User, accessToken.Token, accessToken.ExpiresAt)
	ttl := 5 * time.Minute
	if remaining := session.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	cacheJSON(ctx, s.cache, s.logger, key, session, ttl)

	return session, nil
}

// Profile loads the account behind a session.
func (s *AuthenticationService) Profile(ctx context.Context, actor *Session) (*User, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthenticationService) issueSession(ctx context.Context, user *User) (*Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	accessToken := &AccessToken{
		Token:     hex.EncodeToString(tokenBytes),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.tokenTTL),
	}
	if err := s.store.CreateAccessToken(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return newSession(user, accessToken.Token, accessToken.ExpiresAt), nil
}

func newSession(user *User, token string, expiresAt time.Time) *Session {
	return &Session{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		ExpiresAt: expiresAt,
		Token:     token,
	}
}

func sessionCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}
