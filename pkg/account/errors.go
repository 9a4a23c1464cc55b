package account

import "github.com/pkg/errors"

var (
	// ErrInvalidAmount 金额非法（<=0，或初始余额为负）
	ErrInvalidAmount = errors.New("amount must be > 0")

	// ErrOverflow 存款会导致余额或累计值溢出 int64
	ErrOverflow = errors.New("amount overflows balance")

	// ErrClosed 账户已关闭，不再接受存款；等待中的取款无法再被满足
	ErrClosed = errors.New("account closed")

	// ErrInvariantViolation 余额为负或收支不守恒，说明同步存在缺陷
	ErrInvariantViolation = errors.New("account invariant violated")
)

// IsFatal 判断错误是否属于不可恢复的编程错误
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrOverflow)
}
