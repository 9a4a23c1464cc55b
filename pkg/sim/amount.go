package sim

import (
	"math/rand/v2"
	"sync"
)

// AmountSource 金额来源
// Next 返回 false 表示已耗尽，对应的 Actor 随之停止
type AmountSource interface {
	Next() (int64, bool)
}

// RandomAmounts 闭区间 [min, max] 上的均匀随机金额，种子固定时序列可复现
type RandomAmounts struct {
	min, max int64
	rng      *rand.Rand
}

// NewRandomAmounts 创建随机金额来源
// 调用方保证 0 < min <= max（由 config.Validate 检查）
func NewRandomAmounts(min, max int64, seed uint64) *RandomAmounts {
	return &RandomAmounts{
		min: min,
		max: max,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Next 实现 AmountSource，永不耗尽
func (r *RandomAmounts) Next() (int64, bool) {
	return r.min + r.rng.Int64N(r.max-r.min+1), true
}

// SequenceAmounts 按给定顺序产出金额，用完即耗尽
type SequenceAmounts struct {
	mu     sync.Mutex
	values []int64
}

// NewSequenceAmounts 创建固定序列来源
func NewSequenceAmounts(values ...int64) *SequenceAmounts {
	return &SequenceAmounts{values: append([]int64(nil), values...)}
}

// Next 实现 AmountSource
func (s *SequenceAmounts) Next() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.values) == 0 {
		return 0, false
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, true
}
