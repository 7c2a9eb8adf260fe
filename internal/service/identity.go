package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/apierrors"
	"github.com/dtroode/identity-server/internal/credential"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// RegisterParams holds registration input.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// Identity implements the user registration, login and management use cases.
// Every error it returns is an *apierrors.APIError.
type Identity struct {
	userStore    model.UserStore
	hasher       model.PasswordHasher
	tokenService *TokenService
	publisher    model.EventPublisher
	logger       *logger.Logger
	now          func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

func NewIdentity(
	userStore model.UserStore,
	hasher model.PasswordHasher,
	tokenService *TokenService,
	publisher model.EventPublisher,
	logger *logger.Logger,
) *Identity {
	return &Identity{
		userStore:    userStore,
		hasher:       hasher,
		tokenService: tokenService,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Identity) Register(ctx context.Context, params RegisterParams) (model.UserView, error) {
	s.logger.Debug("Identity service: registering user",
		"username", params.Username,
		"email", params.Email)

	if err := validateRegisterParams(params); err != nil {
		return model.UserView{}, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if errors.Is(err, credential.ErrPasswordTooLong) {
		return model.UserView{}, apierrors.NewErrInvalidRequest("password must be at most 72 bytes", err)
	}
	if err != nil {
		s.logger.Error("Identity service: failed to hash password",
			"email", params.Email,
			"error", err.Error())
		return model.UserView{}, apierrors.NewErrInternal(fmt.Errorf("failed to hash password: %w", err))
	}

	user, err := s.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	switch {
	case errors.Is(err, model.ErrDuplicateEmail):
		s.logger.Info("Identity service: email already registered",
			"email", params.Email)
		return model.UserView{}, apierrors.NewErrInvalidRequest(
			fmt.Sprintf("email %s is already registered", params.Email), err)
	case errors.Is(err, model.ErrDuplicateUsername):
		s.logger.Info("Identity service: username already taken",
			"username", params.Username)
		return model.UserView{}, apierrors.NewErrInvalidRequest(
			fmt.Sprintf("username %s is already taken", params.Username), err)
	case err != nil:
		s.logger.Error("Identity service: failed to create user",
			"email", params.Email,
			"error", err.Error())
		return model.UserView{}, apierrors.NewErrInternal(fmt.Errorf("failed to create user: %w", err))
	}

	s.publish(ctx, model.UserEventRegistered, user)

	s.logger.Info("Identity service: user registered",
		"user_id", user.ID)

	return user.View(), nil
}

func (s *Identity) Login(ctx context.Context, email, password string) (model.Session, error) {
	s.logger.Debug("Identity service: logging in",
		"email", email)

	user, err := s.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Info("Identity service: login for unknown email",
			"email", email)
		s.verifyDummy(password)
		return model.Session{}, apierrors.NewErrUnauthorized()
	}
	if err != nil {
		s.logger.Error("Identity service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternal(fmt.Errorf("failed to get user by email: %w", err))
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("Identity service: stored password hash is unusable",
			"user_id", user.ID,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternal(fmt.Errorf("failed to verify password: %w", err))
	}
	if !ok {
		s.logger.Info("Identity service: login with wrong password",
			"user_id", user.ID)
		return model.Session{}, apierrors.NewErrUnauthorized()
	}

	token, expiresAt, err := s.tokenService.Issue(ctx, user.ID)
	if err != nil {
		s.logger.Error("Identity service: failed to issue token",
			"user_id", user.ID,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternal(err)
	}

	s.logger.Info("Identity service: user logged in",
		"user_id", user.ID)

	return model.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.View(),
	}, nil
}

func (s *Identity) GetUser(ctx context.Context, id uuid.UUID) (model.UserView, error) {
	user, err := s.userStore.GetByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.UserView{}, apierrors.NewErrNotFound(fmt.Sprintf("user %s not found", id), err)
	}
	if err != nil {
		s.logger.Error("Identity service: failed to get user",
			"user_id", id,
			"error", err.Error())
		return model.UserView{}, apierrors.NewErrInternal(fmt.Errorf("failed to get user: %w", err))
	}

	return user.View(), nil
}

func (s *Identity) ListUsers(ctx context.Context, page, size int) (model.UserPage, error) {
	if page < 1 {
		return model.UserPage{}, apierrors.NewErrInvalidRequest("page must be greater than zero", model.ErrInvalidPage)
	}
	if size < 0 {
		return model.UserPage{}, apierrors.NewErrInvalidRequest("size must not be negative", nil)
	}

	users, total, err := s.userStore.List(ctx, page, size)
	if errors.Is(err, model.ErrInvalidPage) {
		return model.UserPage{}, apierrors.NewErrInvalidRequest("page must be greater than zero", err)
	}
	if err != nil {
		s.logger.Error("Identity service: failed to list users",
			"page", page,
			"size", size,
			"error", err.Error())
		return model.UserPage{}, apierrors.NewErrInternal(fmt.Errorf("failed to list users: %w", err))
	}

	views := make([]model.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}

	return model.UserPage{
		Users: views,
		Page:  page,
		Size:  size,
		Total: total,
		Pages: model.PageCount(total, size),
	}, nil
}

func (s *Identity) DeleteUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.userStore.GetByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return apierrors.NewErrNotFound(fmt.Sprintf("user %s not found", id), err)
	}
	if err != nil {
		s.logger.Error("Identity service: failed to get user",
			"user_id", id,
			"error", err.Error())
		return apierrors.NewErrInternal(fmt.Errorf("failed to get user: %w", err))
	}

	deleted, err := s.userStore.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Identity service: failed to delete user",
			"user_id", id,
			"error", err.Error())
		return apierrors.NewErrInternal(fmt.Errorf("failed to delete user: %w", err))
	}
	if !deleted {
		return apierrors.NewErrNotFound(fmt.Sprintf("user %s not found", id), model.ErrNotFound)
	}

	s.publish(ctx, model.UserEventDeleted, user)

	s.logger.Info("Identity service: user deleted",
		"user_id", id)

	return nil
}

// Authenticate resolves a bearer token into the user id it was issued for.
func (s *Identity) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, apierrors.NewErrMissingAuthorizationToken()
	}

	userID, err := s.tokenService.GetUserID(ctx, token)
	if errors.Is(err, model.ErrTokenExpired) {
		return uuid.Nil, apierrors.NewErrTokenExpired(err)
	}
	if err != nil {
		s.logger.Debug("Identity service: rejected token",
			"error", err.Error())
		return uuid.Nil, apierrors.NewErrTokenMalformed(err)
	}

	return userID, nil
}

// verifyDummy spends the same hashing work as a real password check so an
// unknown email takes as long to reject as a wrong password.
func (s *Identity) verifyDummy(password string) {
	s.dummyHashOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Error("Identity service: failed to prepare dummy hash",
				"error", err.Error())
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummyHash)
}

// publish is best effort: the user change has already happened.
func (s *Identity) publish(ctx context.Context, eventType model.UserEventType, user model.User) {
	err := s.publisher.Publish(ctx, model.UserEvent{
		Type:       eventType,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("Identity service: failed to publish user event",
			"type", eventType,
			"user_id", user.ID,
			"error", err.Error())
	}
}

func validateRegisterParams(params RegisterParams) error {
	switch {
	case strings.TrimSpace(params.Username) == "":
		return apierrors.NewErrInvalidRequest("username is required", nil)
	case strings.TrimSpace(params.Email) == "":
		return apierrors.NewErrInvalidRequest("email is required", nil)
	case params.Password == "":
		return apierrors.NewErrInvalidRequest("password is required", nil)
	}
	return nil
}
