package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/types"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// DecodeJSONBody 解码请求体：空体与非法 JSON 返回 400，超过 1 MB 返回 413。
// 未知字段直接忽略。
// 出错时已写好响应，调用方直接 return。
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil || r.Body == http.NoBody {
		apiErr := types.NewInvalidRequestError("request body is empty")
		WriteError(w, apiErr, logger)
		return apiErr
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(dst)
	if err == nil {
		return nil
	}

	apiErr := types.NewInvalidRequestError("invalid JSON body").WithCause(err)
	if tooLarge := (*http.MaxBytesError)(nil); errors.As(err, &tooLarge) {
		apiErr = types.NewInvalidRequestError("request body too large").
			WithCause(err).
			WithHTTPStatus(http.StatusRequestEntityTooLarge)
	}
	WriteError(w, apiErr, logger)
	return apiErr
}

// ValidateContentType 要求 application/json（忽略参数与大小写），否则 415
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mediaType == "application/json" {
		return true
	}
	WriteError(w, types.NewInvalidRequestError("Content-Type must be application/json").
		WithHTTPStatus(http.StatusUnsupportedMediaType), logger)
	return false
}
