// Package role はロールのCRUDに関するドメインロジックを提供する。
package role

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/repository"
	"github.com/hitoshi/cmsadmin/internal/security"
)

// maxNameLength はroles.roleカラムの長さ。
const maxNameLength = 100

// namePattern はロール名の形式。ROLE_で始まる英大文字、数字、アンダースコアのみ許可する。
var namePattern = regexp.MustCompile(`^ROLE_[A-Z0-9_]+$`)

// Service はロール管理のサービス層。
type Service struct {
	repo      repository.RoleRepository
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.RoleRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// List は全ロールを名前順で返す。
func (s *Service) List(ctx context.Context) ([]model.Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ロール一覧の取得に失敗しました: %w", err)
	}
	return roles, nil
}

// Get は指定IDのロールを返す。存在しない場合はROLE_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ロールの取得に失敗しました: %w", err)
	}
	if role == nil {
		return nil, model.NewRoleNotFoundError(id)
	}
	return role, nil
}

// Create はロールを作成する。
func (s *Service) Create(ctx context.Context, rawName string) (*model.Role, error) {
	name, err := s.normalize(rawName)
	if err != nil {
		return nil, err
	}

	role := &model.Role{Name: name}
	if err := s.repo.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewRoleDuplicateError(name)
		}
		return nil, fmt.Errorf("ロールの作成に失敗しました: %w", err)
	}

	slog.Info("role created",
		slog.Int64("role_id", role.ID),
		slog.String("role", role.Name),
	)
	return role, nil
}

// Update はロール名を更新する。versionは編集開始時に読み込んだ値で、
// 他の更新が先に行われていた場合はROLE_CONFLICTを返す。
func (s *Service) Update(ctx context.Context, id int64, rawName string, version int) (*model.Role, error) {
	name, err := s.normalize(rawName)
	if err != nil {
		return nil, err
	}

	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Name = name
	role.Version = version

	if err := s.repo.Update(ctx, role); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, model.NewRoleConflictError()
		case errors.Is(err, repository.ErrDuplicate):
			return nil, model.NewRoleDuplicateError(name)
		}
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}

	slog.Info("role updated",
		slog.Int64("role_id", role.ID),
		slog.String("role", role.Name),
		slog.Int("version", role.Version),
	)
	return role, nil
}

// Delete はロールを削除し、削除したロールを返す。
// 存在しない場合はエラーにせずnilを返す。
func (s *Service) Delete(ctx context.Context, id int64) (*model.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ロールの取得に失敗しました: %w", err)
	}
	if role == nil {
		return nil, nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("ロールの削除に失敗しました: %w", err)
	}

	slog.Info("role deleted",
		slog.Int64("role_id", role.ID),
		slog.String("role", role.Name),
	)
	return role, nil
}

// normalize はフォーム入力のロール名をサニタイズして検証する。
func (s *Service) normalize(raw string) (string, error) {
	name := s.sanitizer.Sanitize(raw)
	switch {
	case name == "":
		return "", model.NewRoleInvalidError("ロール名は必須です")
	case len(name) > maxNameLength:
		return "", model.NewRoleInvalidError(fmt.Sprintf("ロール名は%d文字以内で入力してください", maxNameLength))
	case !namePattern.MatchString(name):
		return "", model.NewRoleInvalidError("ロール名はROLE_で始まる英大文字、数字、アンダースコアで入力してください")
	}
	return name, nil
}
