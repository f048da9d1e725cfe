package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/repository"
	pkgerrors "deadline-desk/backend/pkg/errors"
	"deadline-desk/backend/pkg/jwt"
)

// AuthService 访问令牌签发接口
//
// 用户通过 Telegram 机器人注册，API 不处理密码；
// 令牌由运维 CLI 或机器人侧按 user_id / telegram_id 签发。
type AuthService interface {
	IssueToken(ctx context.Context, userID string) (*dto.TokenResponse, error)
	IssueTokenForTelegram(ctx context.Context, telegramID int64) (*dto.TokenResponse, error)
}

type authService struct {
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	logger *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(repo *repository.Repository, jwtMgr *jwt.Manager, logger *zap.Logger) AuthService {
	return &authService{
		repo:   repo,
		jwtMgr: jwtMgr,
		logger: logger,
	}
}

func (s *authService) IssueToken(ctx context.Context, userID string) (*dto.TokenResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("user", userID)
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	return s.issue(user.UserID, user.TelegramID)
}

func (s *authService) IssueTokenForTelegram(ctx context.Context, telegramID int64) (*dto.TokenResponse, error) {
	user, err := s.repo.User.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("user", fmt.Sprintf("telegram:%d", telegramID))
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	return s.issue(user.UserID, user.TelegramID)
}

func (s *authService) issue(userID string, telegramID int64) (*dto.TokenResponse, error) {
	token, err := s.jwtMgr.GenerateAccessToken(userID, telegramID)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		UserID:      userID,
	}, nil
}
