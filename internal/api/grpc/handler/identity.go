package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/dtroode/identity-server/internal/api/grpc/proto"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/service"
)

// IdentityService defines the user operations exposed over gRPC.
type IdentityService interface {
	Register(ctx context.Context, params service.RegisterParams) (model.UserView, error)
	Login(ctx context.Context, email, password string) (model.Session, error)
	GetUser(ctx context.Context, id uuid.UUID) (model.UserView, error)
	ListUsers(ctx context.Context, page, size int) (model.UserPage, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Identity handles gRPC endpoints of identity.v1.Identity.
type Identity struct {
	proto.UnimplementedIdentityServer
	identityService IdentityService
	contextManager  model.ContextManager
	logger          *logger.Logger
}

// NewIdentity creates a new Identity handler.
func NewIdentity(identityService IdentityService, contextManager model.ContextManager, logger *logger.Logger) *Identity {
	return &Identity{
		identityService: identityService,
		contextManager:  contextManager,
		logger:          logger,
	}
}

// Register creates a user and returns its public view.
func (h *Identity) Register(ctx context.Context, req *proto.RegisterRequest) (*proto.User, error) {
	h.logger.Debug("Identity handler: processing register request",
		"username", req.GetUsername(),
		"email", req.GetEmail())

	user, err := h.identityService.Register(ctx, service.RegisterParams{
		Username: req.GetUsername(),
		Email:    req.GetEmail(),
		Password: req.GetPassword(),
	})
	if err != nil {
		return nil, h.handleError(err)
	}

	return toProtoUser(user), nil
}

// Login exchanges credentials for a bearer token.
func (h *Identity) Login(ctx context.Context, req *proto.LoginRequest) (*proto.LoginResponse, error) {
	h.logger.Debug("Identity handler: processing login request",
		"email", req.GetEmail())

	session, err := h.identityService.Login(ctx, req.GetEmail(), req.GetPassword())
	if err != nil {
		return nil, h.handleError(err)
	}

	return &proto.LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toProtoUser(session.User),
	}, nil
}

func (h *Identity) GetUser(ctx context.Context, req *proto.GetUserRequest) (*proto.User, error) {
	id, err := uuid.Parse(req.GetId())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid user id")
	}

	user, err := h.identityService.GetUser(ctx, id)
	if err != nil {
		return nil, h.handleError(err)
	}

	return toProtoUser(user), nil
}

func (h *Identity) ListUsers(ctx context.Context, req *proto.ListUsersRequest) (*proto.ListUsersResponse, error) {
	pageNum, size := listWindow(req)
	page, err := h.identityService.ListUsers(ctx, pageNum, size)
	if err != nil {
		return nil, h.handleError(err)
	}

	users := make([]*proto.User, 0, len(page.Users))
	for _, u := range page.Users {
		users = append(users, toProtoUser(u))
	}

	return &proto.ListUsersResponse{
		Users: users,
		Page:  int32(page.Page),
		Size:  int32(page.Size),
		Total: int64(page.Total),
		Pages: int64(page.Pages),
	}, nil
}

// DeleteUser removes a user. Any authenticated caller may delete any user.
func (h *Identity) DeleteUser(ctx context.Context, req *proto.DeleteUserRequest) (*emptypb.Empty, error) {
	id, err := uuid.Parse(req.GetId())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid user id")
	}

	callerID, _ := h.contextManager.GetUserIDFromContext(ctx)
	h.logger.Info("Identity handler: deleting user",
		"user_id", id,
		"caller_id", callerID)

	if err := h.identityService.DeleteUser(ctx, id); err != nil {
		return nil, h.handleError(err)
	}

	return &emptypb.Empty{}, nil
}

// listWindow treats an unset page or size as the default, as the HTTP query does.
// Page and size come from int32 fields, so the echoed values fit back into them.
func listWindow(req *proto.ListUsersRequest) (int, int) {
	page := max(int(req.GetPage()), 1)
	size := int(req.GetSize())
	if size == 0 {
		size = model.DefaultPageSize
	}
	return page, min(size, model.MaxPageSize)
}

func toProtoUser(u model.UserView) *proto.User {
	return &proto.User{
		Id:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
