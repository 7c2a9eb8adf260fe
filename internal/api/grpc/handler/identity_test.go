package handler

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/api/grpc/proto"
	"github.com/dtroode/identity-server/internal/apierrors"
	"github.com/dtroode/identity-server/internal/mocks"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/service"
	"github.com/dtroode/identity-server/internal/testutil"
)

// MockIdentityService mocks the IdentityService interface
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) Register(ctx context.Context, params service.RegisterParams) (model.UserView, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.UserView), args.Error(1)
}

func (m *MockIdentityService) Login(ctx context.Context, email, password string) (model.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *MockIdentityService) GetUser(ctx context.Context, id uuid.UUID) (model.UserView, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.UserView), args.Error(1)
}

func (m *MockIdentityService) ListUsers(ctx context.Context, page, size int) (model.UserPage, error) {
	args := m.Called(ctx, page, size)
	return args.Get(0).(model.UserPage), args.Error(1)
}

func (m *MockIdentityService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var testView = model.UserView{
	ID:        uuid.MustParse("7f1c2b0e-4a55-4d8e-9a3c-2f6b1d9e8a70"),
	Username:  "alice",
	Email:     "alice@example.com",
	CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

func TestIdentity_Register(t *testing.T) {
	t.Parallel()

	svc := &MockIdentityService{}
	svc.On("Register", mock.Anything, service.RegisterParams{Username: "alice", Email: "alice@example.com", Password: "pw"}).
		Return(testView, nil).Once()

	h := NewIdentity(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())

	resp, err := h.Register(context.Background(), &proto.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testView.ID.String(), resp.Id)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "2024-01-02T03:04:05Z", resp.CreatedAt)
	svc.AssertExpectations(t)
}

func TestIdentity_Login(t *testing.T) {
	t.Parallel()

	expiresAt := time.Date(2024, 1, 2, 4, 4, 5, 0, time.UTC)
	svc := &MockIdentityService{}
	svc.On("Login", mock.Anything, "alice@example.com", "pw").
		Return(model.Session{Token: "tok", ExpiresAt: expiresAt, User: testView}, nil).Once()

	h := NewIdentity(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())

	resp, err := h.Login(context.Background(), &proto.LoginRequest{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "2024-01-02T04:04:05Z", resp.ExpiresAt)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestIdentity_ListUsers(t *testing.T) {
	t.Parallel()

	svc := &MockIdentityService{}
	svc.On("ListUsers", mock.Anything, 2, 5).
		Return(model.UserPage{Users: []model.UserView{testView}, Page: 2, Size: 5, Total: 6, Pages: 2}, nil).Once()

	h := NewIdentity(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())

	resp, err := h.ListUsers(context.Background(), &proto.ListUsersRequest{Page: 2, Size: 5})
	require.NoError(t, err)
	require.Len(t, resp.Users, 1)
	assert.Equal(t, int64(6), resp.Total)
	assert.Equal(t, int64(2), resp.Pages)
}

func TestIdentity_ListUsersWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      *proto.ListUsersRequest
		wantPage int
		wantSize int
	}{
		{name: "unset page and size", req: &proto.ListUsersRequest{}, wantPage: 1, wantSize: 10},
		{name: "negative page", req: &proto.ListUsersRequest{Page: -3, Size: 5}, wantPage: 1, wantSize: 5},
		{name: "size above cap", req: &proto.ListUsersRequest{Page: 2, Size: 500}, wantPage: 2, wantSize: 100},
		{name: "negative size is left to the service", req: &proto.ListUsersRequest{Page: 1, Size: -1}, wantPage: 1, wantSize: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &MockIdentityService{}
			svc.On("ListUsers", mock.Anything, tt.wantPage, tt.wantSize).
				Return(model.UserPage{Page: tt.wantPage, Size: tt.wantSize}, nil).Once()

			h := NewIdentity(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())

			resp, err := h.ListUsers(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, int32(tt.wantPage), resp.Page)
			assert.Equal(t, int32(tt.wantSize), resp.Size)
			svc.AssertExpectations(t)
		})
	}
}

func TestIdentity_ListUsersLargeTotal(t *testing.T) {
	t.Parallel()

	svc := &MockIdentityService{}
	svc.On("ListUsers", mock.Anything, 1, 10).
		Return(model.UserPage{Page: 1, Size: 10, Total: math.MaxInt32 + 1, Pages: math.MaxInt32/10 + 1}, nil).Once()

	h := NewIdentity(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())

	resp, err := h.ListUsers(context.Background(), &proto.ListUsersRequest{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt32)+1, resp.Total)
	assert.Equal(t, int64(math.MaxInt32/10+1), resp.Pages)
}

func TestIdentity_DeleteUser(t *testing.T) {
	t.Parallel()

	callerID := uuid.New()
	svc := &MockIdentityService{}
	svc.On("DeleteUser", mock.Anything, testView.ID).Return(nil).Once()
	cm := mocks.NewContextManager(t)
	cm.On("GetUserIDFromContext", mock.Anything).Return(callerID, true).Once()

	h := NewIdentity(svc, cm, testutil.MakeNoopLogger())

	resp, err := h.DeleteUser(context.Background(), &proto.DeleteUserRequest{Id: testView.ID.String()})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestIdentity_InvalidID(t *testing.T) {
	t.Parallel()

	h := NewIdentity(&MockIdentityService{}, mocks.NewContextManager(t), testutil.MakeNoopLogger())

	_, err := h.GetUser(context.Background(), &proto.GetUserRequest{Id: "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.DeleteUser(context.Background(), &proto.DeleteUserRequest{Id: ""})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestIdentity_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantCode    codes.Code
		wantMessage string
	}{
		{name: "invalid request", err: apierrors.NewErrInvalidRequest("email x is already registered", model.ErrDuplicateEmail), wantCode: codes.InvalidArgument, wantMessage: "email x is already registered"},
		{name: "unauthorized", err: apierrors.NewErrUnauthorized(), wantCode: codes.Unauthenticated, wantMessage: "invalid email or password"},
		{name: "not found", err: apierrors.NewErrNotFound("user not found", model.ErrNotFound), wantCode: codes.NotFound, wantMessage: "user not found"},
		{name: "token expired", err: apierrors.NewErrTokenExpired(model.ErrTokenExpired), wantCode: codes.Unauthenticated, wantMessage: "authorization token has expired"},
		{name: "internal hides detail", err: apierrors.NewErrInternal(assert.AnError), wantCode: codes.Internal, wantMessage: "internal server error"},
		{name: "plain error is internal", err: assert.AnError, wantCode: codes.Internal, wantMessage: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &MockIdentityService{}
			svc.On("GetUser", mock.Anything, testView.ID).Return(model.UserView{}, tt.err).Once()

			h := NewIdentity(svc, mocks.NewContextManager(t), testutil.MakeNoopLogger())

			_, err := h.GetUser(context.Background(), &proto.GetUserRequest{Id: testView.ID.String()})
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMessage, st.Message())
		})
	}
}
