package auth

import (
	"context"
	"errors"
)

// ErrRejected はサインインが拒否されたことを表す。
// トークンの検証失敗や許可されていないドメインは例外的な状況ではなく通常の結果として扱う。
var ErrRejected = errors.New("sign-in rejected")

// VerifiedIdentity は外部IdPで検証済みのアカウント情報。
type VerifiedIdentity struct {
	Email   string
	Subject string
}

// IdentityVerifier は外部IdPのIDトークンを検証する。
// 無効、期限切れ、形式不正のトークンにはErrRejectedをラップしたエラーを返す。
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*VerifiedIdentity, error)
}
