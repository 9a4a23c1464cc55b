package actor

import (
	"context"

	"github.com/pkg/errors"
)

// ═══════════════════════════════════════════════════════════════════════════
// 错误处理工具
// ═══════════════════════════════════════════════════════════════════════════

// IsContextError 检查错误是否为 context 取消或超时
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IgnoreContextError 如果是 context 错误则返回 nil
func IgnoreContextError(err error) error {
	if IsContextError(err) {
		return nil
	}
	return err
}
