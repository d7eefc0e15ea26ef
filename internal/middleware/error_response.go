package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ErrorWriter はエラーレスポンスの書き込み方法。
// 管理画面ではHTMLのエラーページを描画する実装に差し替える。
type ErrorWriter func(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError)

// JSONErrorWriter はWriteErrorResponseで書き込むErrorWriter。
func JSONErrorWriter(w http.ResponseWriter, _ *http.Request, statusCode int, apiErr *model.APIError) {
	WriteErrorResponse(w, statusCode, apiErr)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// StatusForAPIError はエラーコードに対応するHTTPステータスを返す。
func StatusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeAccessDenied, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeExceptionNotFound, model.ErrCodeRoleNotFound,
		model.ErrCodeUserNotFound, model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeRoleInvalid, model.ErrCodePasswordInvalid:
		return http.StatusBadRequest
	case model.ErrCodeRoleDuplicate, model.ErrCodeRoleConflict:
		return http.StatusConflict
	case model.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
