package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/model"
	"deadline-desk/backend/internal/repository"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── 用户模块业务错误 ──

var (
	ErrUserTelegramIDInvalid = errors.New("telegram_id 必须为正数")
	ErrUserProfileEmpty      = errors.New("至少需要一个待更新字段")
)

// UserService 用户登记与个人资料
//
// 用户以 Telegram chat id 为外部身份：Register 不存在则创建，存在则更新传入的非空字段。
type UserService interface {
	Register(ctx context.Context, req *dto.RegisterUserRequest) (*dto.RegisterUserResponse, error)
	GetProfile(ctx context.Context, userID string) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
}

type userService struct {
	repo   *repository.Repository
	clock  Clock
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, clock Clock, logger *zap.Logger) UserService {
	return &userService{repo: repo, clock: clock, logger: logger}
}

// ────────────────────── Register ──────────────────────

func (s *userService) Register(ctx context.Context, req *dto.RegisterUserRequest) (*dto.RegisterUserResponse, error) {
	if req.TelegramID <= 0 {
		return nil, ErrUserTelegramIDInvalid
	}

	existing, err := s.repo.User.GetByTelegramID(ctx, req.TelegramID)
	switch {
	case err == nil:
		updates := profileUpdates(req.Username, req.FirstName, req.GroupNumber)
		if len(updates) > 0 {
			if err := s.repo.User.UpdateProfile(ctx, existing.UserID, updates); err != nil {
				return nil, fmt.Errorf("更新用户资料失败: %w", err)
			}
		}
		user, err := s.repo.User.GetByID(ctx, existing.UserID)
		if err != nil {
			return nil, fmt.Errorf("查询用户失败: %w", err)
		}
		return &dto.RegisterUserResponse{User: s.toUserResponse(user), Created: false}, nil
	case !isNotFound(err):
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	user := &model.User{
		TelegramID:  req.TelegramID,
		Username:    trimmedOrNil(req.Username),
		FirstName:   trimmedOrNil(req.FirstName),
		GroupNumber: trimmedOrNil(req.GroupNumber),
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	s.logger.Info("用户已登记", zap.String("user_id", user.UserID), zap.Int64("telegram_id", user.TelegramID))
	return &dto.RegisterUserResponse{User: s.toUserResponse(user), Created: true}, nil
}

// ────────────────────── Profile ──────────────────────

func (s *userService) GetProfile(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	resp := s.toUserResponse(user)
	return &resp, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	updates := profileUpdates(nil, req.FirstName, req.GroupNumber)
	if len(updates) == 0 {
		return nil, ErrUserProfileEmpty
	}
	if err := s.repo.User.UpdateProfile(ctx, userID, updates); err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("更新用户资料失败: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

// profileUpdates 只收集非空字段，空白字符串不覆盖已有值
func profileUpdates(username, firstName, groupNumber *string) map[string]interface{} {
	updates := make(map[string]interface{})
	if v := trimmedOrNil(username); v != nil {
		updates["username"] = *v
	}
	if v := trimmedOrNil(firstName); v != nil {
		updates["first_name"] = *v
	}
	if v := trimmedOrNil(groupNumber); v != nil {
		updates["group_number"] = *v
	}
	return updates
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *userService) toUserResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:               u.UserID,
		TelegramID:       u.TelegramID,
		Username:         u.Username,
		FirstName:        u.FirstName,
		GroupNumber:      u.GroupNumber,
		HasScheduleFeed:  u.ICalURL != nil && *u.ICalURL != "",
		LastScheduleSync: formatTimePtr(u.LastScheduleSync, s.clock.Location()),
	}
}
