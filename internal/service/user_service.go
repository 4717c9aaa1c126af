package service

import (
	"context"
	"strings"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// UserService manages the accounts known to the inventory core.
// Deletion goes through the user RecycleBin.
type UserService struct {
	repo   Repository
	opts   Options
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(repo Repository, opts Options) *UserService {
	return &UserService{
		repo:   repo,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// CreateUserInput is the payload of an account creation.
type CreateUserInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Role      string `json:"role" validate:"required"`
}

// UserSummary counts accounts.
type UserSummary struct {
	Total    int                 `json:"total"`
	Active   int                 `json:"active"`
	Deleted  int                 `json:"deleted"`
	ByRole   map[models.Role]int `json:"byRole"`
	Inactive int                 `json:"inactive"`
}

// CreateUser registers an account. Nobody may create a MASTER_ADMIN.
func (s *UserService) CreateUser(ctx context.Context, actor Actor, in *CreateUserInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.CreateUser")
	defer span.End()

	if err := Authorize(actor, PermUserCreate); err != nil {
		return nil, err
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	role, ok := models.ParseRole(in.Role)
	if !ok {
		return nil, apperr.InvalidInput("unknown role %q", in.Role)
	}
	if role == models.RoleMasterAdmin {
		return nil, apperr.Forbidden("MASTER_ADMIN accounts cannot be created")
	}
	if err := authorizeUserTarget(actor, role); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      role,
		Status:    models.UserStatusActive,
		CreatedAt: s.opts.now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Int64("created_by", actor.ID))
	return user, nil
}

// GetUser returns one account.
func (s *UserService) GetUser(ctx context.Context, actor Actor, id int64) (*models.User, error) {
	if err := Authorize(actor, PermUserView); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, id)
}

// ListUsers returns active or deleted accounts, optionally of one role.
func (s *UserService) ListUsers(ctx context.Context, actor Actor, deleted bool, role string) ([]models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.ListUsers")
	defer span.End()

	if err := Authorize(actor, PermUserView); err != nil {
		return nil, err
	}

	filter := models.UserFilter{Deleted: deleted}
	if role != "" {
		r, ok := models.ParseRole(role)
		if !ok {
			return nil, apperr.InvalidInput("unknown role %q", role)
		}
		filter.Role = r
	}
	return s.repo.ListUsers(ctx, filter)
}

// Summary counts accounts by state and role.
func (s *UserService) Summary(ctx context.Context, actor Actor) (*UserSummary, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Summary")
	defer span.End()

	if err := Authorize(actor, PermUserView); err != nil {
		return nil, err
	}

	active, err := s.repo.ListUsers(ctx, models.UserFilter{})
	if err != nil {
		return nil, err
	}
	deleted, err := s.repo.ListUsers(ctx, models.UserFilter{Deleted: true})
	if err != nil {
		return nil, err
	}

	summary := &UserSummary{
		Total:   len(active) + len(deleted),
		Active:  len(active),
		Deleted: len(deleted),
		ByRole: map[models.Role]int{
			models.RoleMasterAdmin: 0,
			models.RoleAdmin:       0,
			models.RoleEmployee:    0,
		},
	}
	for _, u := range active {
		summary.ByRole[u.Role]++
		if u.Status == models.UserStatusInactive {
			summary.Inactive++
		}
	}
	return summary, nil
}

// AdminEmails returns the addresses of active ADMIN and MASTER_ADMIN
// accounts, the recipients of alert notifications.
func (s *UserService) AdminEmails(ctx context.Context) ([]string, error) {
	users, err := s.repo.ListUsers(ctx, models.UserFilter{})
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0)
	for _, u := range users {
		if u.Role.IsAdmin() && u.Status == models.UserStatusActive {
			emails = append(emails, u.Email)
		}
	}
	return emails, nil
}
