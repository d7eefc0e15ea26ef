// Package user は管理ユーザー自身のアカウント操作のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// maxPasswordBytes はbcryptが扱える最大長。
const maxPasswordBytes = 72

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	cost     int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		cost:     bcrypt.DefaultCost,
	}
}

// ChangePassword はパスワードを変更し、パスワード変更済みフラグを立てる。
func (s *Service) ChangePassword(ctx context.Context, userID, password, confirmation string) error {
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return model.NewPasswordInvalidError(fmt.Sprintf("%d文字以上で入力してください", MinPasswordLength))
	case len(password) > maxPasswordBytes:
		return model.NewPasswordInvalidError("長すぎます")
	case password != confirmation:
		return model.NewPasswordInvalidError("確認用のパスワードが一致しません")
	}

	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	slog.Info("password changed", slog.String("user_id", userID))
	return nil
}
