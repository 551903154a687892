// Package identity provides email/password accounts with JWT session tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/mutation"
	"taskboard/api/internal/session"
	"taskboard/api/internal/signup"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const minPasswordLength = 6

// Error messages mirror the codes hosted identity providers return, so the
// registration form can show them verbatim.
var (
	ErrEmailExists        = mutation.Reject("EMAIL_EXISTS")
	ErrInvalidEmail       = mutation.Reject("INVALID_EMAIL")
	ErrWeakPassword       = mutation.Reject("WEAK_PASSWORD : Password should be at least 6 characters")
	ErrInvalidIDToken     = mutation.Reject("INVALID_ID_TOKEN")
	ErrUserNotFound       = mutation.Reject("USER_NOT_FOUND")
	ErrInvalidCredentials = mutation.Reject("INVALID_LOGIN_CREDENTIALS")
)

type UserStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	UpdateUserDisplayName(ctx context.Context, userID, displayName string) error
	DeleteUser(ctx context.Context, userID string) error
}

// SignInResult is the session a successful sign-in opened.
type SignInResult struct {
	UserID       string
	UserName     string
	SessionToken string
}

type Service struct {
	users    UserStore
	sessions session.Store
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewService(users UserStore, sessions session.Store, secret string, ttl time.Duration) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SignUp creates an account and opens a session for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (signup.SignUpResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return signup.SignUpResult{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return signup.SignUpResult{}, ErrWeakPassword
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return signup.SignUpResult{}, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return signup.SignUpResult{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return signup.SignUpResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := store.User{
		ID:           util.NewID("usr"),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return signup.SignUpResult{}, ErrEmailExists
		}
		return signup.SignUpResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.openSession(ctx, user, now)
	if err != nil {
		// Drop the account again so the same email can register once the
		// session store is back.
		if delErr := s.users.DeleteUser(context.WithoutCancel(ctx), user.ID); delErr != nil {
			err = errors.Join(err, fmt.Errorf("remove user %s: %w", user.ID, delErr))
		}
		return signup.SignUpResult{}, err
	}
	return signup.SignUpResult{UserID: user.ID, SessionToken: token}, nil
}

// SignIn checks the password of an existing account and opens a new session.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return SignInResult{}, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SignInResult{}, ErrInvalidCredentials
		}
		return SignInResult{}, fmt.Errorf("lookup email: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return SignInResult{}, ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, user, s.now().UTC())
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{UserID: user.ID, UserName: user.DisplayName, SessionToken: token}, nil
}

// SetDisplayName updates the name of the account the token belongs to.
func (s *Service) SetDisplayName(ctx context.Context, sessionToken, name string) error {
	who, err := s.Authenticate(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserDisplayName(ctx, who.UserID, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to the signed-in identity. Revoked,
// expired or forged tokens yield ErrInvalidIDToken.
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (session.Identity, error) {
	claims, err := auth.ParseToken(s.secret, sessionToken)
	if err != nil {
		return session.Identity{}, ErrInvalidIDToken
	}

	userID, err := s.sessions.LookupSession(ctx, auth.HashToken(claims.ID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Identity{}, ErrInvalidIDToken
		}
		return session.Identity{}, fmt.Errorf("lookup session: %w", err)
	}
	if userID != claims.UserID() {
		return session.Identity{}, ErrInvalidIDToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Identity{}, ErrUserNotFound
		}
		return session.Identity{}, fmt.Errorf("load user: %w", err)
	}
	return session.Identity{UserID: user.ID, UserName: user.DisplayName}, nil
}

// SignOut revokes the session behind the token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, sessionToken string) error {
	claims, err := auth.ParseToken(s.secret, sessionToken)
	if err != nil {
		return nil
	}
	return s.sessions.RevokeSession(ctx, auth.HashToken(claims.ID))
}

func (s *Service) openSession(ctx context.Context, user store.User, now time.Time) (string, error) {
	jti := util.NewID("")
	expiresAt := now.Add(s.ttl)
	token, err := auth.IssueToken(s.secret, user.ID, user.Email, jti, now, expiresAt)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if err := s.sessions.SaveSession(ctx, auth.HashToken(jti), user.ID, expiresAt); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return token, nil
}
