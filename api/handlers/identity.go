package handlers

import (
	"errors"
	"net/http"

	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔑 请求身份解析
// =============================================================================

// resolveOwner 从请求上下文解析经过认证的 Owner。
// 认证中间件负责把 Subject 放入上下文；这里只做懒创建映射。
// 失败时已写出错误响应，调用方直接 return 即可。
func resolveOwner(w http.ResponseWriter, r *http.Request, ensurer *store.OwnerEnsurer, logger *zap.Logger) (*types.Owner, bool) {
	subject, ok := types.SubjectFrom(r.Context())
	if !ok || !subject.Authenticated() {
		WriteError(w, types.NewError(types.ErrUnauthenticated, "request carries no authenticated subject"), logger)
		return nil, false
	}

	owner, err := ensurer.Ensure(r.Context(), subject)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to resolve owner").WithCause(err), logger)
		return nil, false
	}
	return owner, true
}

// storeError 将存储层错误映射为 API 错误。
func storeError(err error, notFoundMessage string) *types.Error {
	if errors.Is(err, store.ErrNotFound) {
		return types.NewError(types.ErrNotFound, notFoundMessage)
	}
	return types.NewError(types.ErrStorage, "storage backend failed").WithCause(err).WithRetryable(true)
}
