package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/metrics"
	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/repository"
)

const (
	// MinPasswordLength applies to self-service registration and profile updates.
	MinPasswordLength = 5
	maxNameLength     = 255
	maxEmailLength    = 255
)

// UserExtras overrides the defaults of a new account.
// Nil flags keep the defaults: active, not staff, not superuser.
type UserExtras struct {
	Name        string
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
}

// ProfileUpdate carries self-service changes. Nil fields are left as they are.
type ProfileUpdate struct {
	Name     *string
	Password *string
}

// IssuedToken is a freshly created login token. Plaintext is only available here.
type IssuedToken struct {
	Token string
	User  *model.User
}

// UserService provisions accounts and manages login tokens.
type UserService struct {
	users   UserStore
	tokens  TokenStore
	hasher  *auth.Hasher
	metrics metrics.Recorder
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, tokens TokenStore, hasher *auth.Hasher, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if hasher == nil {
		hasher = auth.NewHasher(auth.DefaultParams)
	}
	return &UserService{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		metrics: recorder,
	}
}

// CreateUser validates and stores a new account. An empty password
// leaves the account without a usable password.
func (s *UserService) CreateUser(ctx context.Context, email, password string, extra UserExtras) (*model.User, error) {
	user, err := s.newUser(email, password, extra)
	if err != nil {
		return nil, err
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, user.Email)
		}
		return nil, err
	}

	s.metrics.IncUserCreated(metrics.UserKindRegular)
	return user, nil
}

// CreateSuperuser creates an account through CreateUser, then grants
// staff and superuser flags and saves it again.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string, extra UserExtras) (*model.User, error) {
	user, err := s.CreateUser(ctx, email, password, extra)
	if err != nil {
		return nil, err
	}

	user.IsStaff = true
	user.IsSuperuser = true
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("promote superuser: %w", err)
	}

	s.metrics.IncUserCreated(metrics.UserKindSuperuser)
	return user, nil
}

// GetUser returns the account with id.
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns all accounts ordered by ID.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.users.ListUsers(ctx)
}

// UpdateProfile applies self-service changes to the account with id.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if utf8.RuneCountInString(name) > maxNameLength {
			return nil, fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLength)
		}
		user.Name = name
	}

	if update.Password != nil {
		if utf8.RuneCountInString(*update.Password) < MinPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
		}
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user, nil
}

// IssueToken exchanges credentials of an active account for a new login token.
func (s *UserService) IssueToken(ctx context.Context, email, password string) (*IssuedToken, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil || password == "" {
		s.metrics.IncAuthFailure("bad_credentials")
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Hash anyway so unknown emails cost the same as wrong passwords.
			_, _ = s.hasher.Hash(password)
			s.metrics.IncAuthFailure("bad_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok || !user.IsActive {
		s.metrics.IncAuthFailure("bad_credentials")
		return nil, ErrInvalidCredentials
	}

	generated, err := auth.GenerateToken(s.hasher)
	if err != nil {
		return nil, err
	}

	token := &model.AuthToken{
		ID:          ulid.Make().String(),
		UserID:      user.ID,
		TokenHash:   generated.Hash,
		TokenPrefix: generated.Prefix,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.tokens.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	return &IssuedToken{Token: generated.Plaintext, User: user}, nil
}

// Authenticate resolves a plaintext token to the auth context of its active owner.
func (s *UserService) Authenticate(ctx context.Context, plaintext string) (*model.AuthContext, error) {
	prefix, err := auth.ParseToken(plaintext)
	if err != nil {
		s.metrics.IncAuthFailure("invalid_format")
		return nil, ErrUnauthenticated
	}

	candidates, err := s.tokens.GetTokensByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup tokens: %w", err)
	}

	// Verify against each candidate (handles prefix collisions)
	var matched *model.AuthToken
	for _, t := range candidates {
		if t.IsRevoked() {
			continue
		}
		if ok, err := auth.VerifyPassword(plaintext, t.TokenHash); err == nil && ok {
			matched = t
			break
		}
	}
	if matched == nil {
		s.metrics.IncAuthFailure("invalid_token")
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetUserByID(ctx, matched.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncAuthFailure("invalid_token")
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		s.metrics.IncAuthFailure("inactive_user")
		return nil, ErrUnauthenticated
	}

	go func(id string) {
		_ = s.tokens.UpdateTokenLastUsed(context.WithoutCancel(ctx), id)
	}(matched.ID)

	return &model.AuthContext{
		TokenID:     matched.ID,
		TokenPrefix: matched.TokenPrefix,
		UserID:      user.ID,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}, nil
}

// RevokeToken revokes the token with id.
func (s *UserService) RevokeToken(ctx context.Context, tokenID string) error {
	if err := s.tokens.RevokeToken(ctx, tokenID); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *UserService) newUser(email, password string, extra UserExtras) (*model.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(normalized) > maxEmailLength {
		return nil, fmt.Errorf("%w: email must be at most %d characters", ErrValidation, maxEmailLength)
	}

	name := strings.TrimSpace(extra.Name)
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLength)
	}

	var hash string
	if password == "" {
		hash = s.hasher.Unusable()
	} else {
		hash, err = s.hasher.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	return &model.User{
		Email:        normalized,
		PasswordHash: hash,
		Name:         name,
		IsActive:     boolOr(extra.IsActive, true),
		IsStaff:      boolOr(extra.IsStaff, false),
		IsSuperuser:  boolOr(extra.IsSuperuser, false),
	}, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
