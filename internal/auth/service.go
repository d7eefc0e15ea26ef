// Package auth はOAuthサインイン、ユーザーの自動作成、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/repository"
)

// サインイン経路。セッションに記録される。
const (
	SignInMethodIDToken = "id_token"
	SignInMethodCode    = "authorization_code"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はサインイン後のセッション発行、ログアウト、現在ユーザーの取得を提供する。
type Service struct {
	exchanger   CodeExchanger
	gate        *Gate
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	exchanger CodeExchanger,
	gate *Gate,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		exchanger:   exchanger,
		gate:        gate,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL はGoogleの認可コードフローのURLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.exchanger.GetLoginURL(state)
}

// SignIn は認証情報からユーザーを解決し、セッションを発行する。
func (s *Service) SignIn(ctx context.Context, creds Credentials) (*model.User, *model.Session, error) {
	return s.signIn(ctx, creds, SignInMethodIDToken)
}

func (s *Service) signIn(ctx context.Context, creds Credentials, method string) (*model.User, *model.Session, error) {
	user, err := s.gate.ResolveUser(ctx, creds)
	if err != nil {
		return nil, nil, err
	}
	if !user.Enabled {
		return nil, nil, fmt.Errorf("%w: user %s is disabled", ErrRejected, user.ID)
	}

	session, err := s.createSession(ctx, user.ID, model.SessionData{SignInMethod: method})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return user, session, nil
}

// HandleCallback は認可コードをIDトークンに交換し、SignInと同じ経路でサインインする。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	idToken, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	return s.signIn(ctx, Credentials{IDToken: idToken}, SignInMethodCode)
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// 無効化されたユーザーは見つからないものとして扱う。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}
	if !user.Enabled {
		// 無効化されたユーザーの残りのセッションもまとめて破棄する
		if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
			slog.Warn("failed to purge sessions of disabled user",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, data model.SessionData) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Data:      data,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
