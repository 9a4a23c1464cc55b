package sim

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// 事件类型
const (
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
)

// Event 一次完成的交易
//
// Balance 是该笔操作在账户锁内完成时的余额。Seq 与 Time 在释放锁之后才分配，
// 所以两个 Actor 的事件行可能与实际变更顺序不一致（例如先打印余额 2 的取款，
// 后打印余额 8 的存款）。逐行余额只对本行有效，不是按 Seq 排列的流水账；
// 核对收支请按 Kind 求和（见 Recorder.Sum）或使用 account.Snapshot。
type Event struct {
	Seq     int64     `json:"seq"`
	Time    time.Time `json:"time"`
	Actor   string    `json:"actor"`
	Kind    string    `json:"kind"`
	Amount  int64     `json:"amount"`
	Balance int64     `json:"balance"` // 操作完成后的余额
}

// String 返回单行可读描述
func (e Event) String() string {
	sign := "+"
	if e.Kind == KindWithdraw {
		sign = "-"
	}
	return fmt.Sprintf("#%04d %s %-9s %-8s %s%-3d balance=%d",
		e.Seq, e.Time.Format("15:04:05.000"), e.Actor, e.Kind, sign, e.Amount, e.Balance)
}

// Reporter 接收交易事件，必须并发安全
type Reporter interface {
	Report(e Event)
}

// ═══════════════════════════════════════════════════════════════════════════
// WriterReporter
// ═══════════════════════════════════════════════════════════════════════════

// WriterReporter 每个事件写一行
type WriterReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterReporter 创建写入 w 的 Reporter
func NewWriterReporter(w io.Writer) *WriterReporter {
	return &WriterReporter{w: w}
}

// Report 实现 Reporter
func (r *WriterReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.w, e.String())
}

// ═══════════════════════════════════════════════════════════════════════════
// Recorder
// ═══════════════════════════════════════════════════════════════════════════

// Recorder 在内存中保存全部事件，用于测试和事后核对
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder 创建 Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Report 实现 Reporter
func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events 返回事件副本
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Sum 返回某类事件的次数与金额合计
func (r *Recorder) Sum(kind string) (count, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind {
			count++
			total += e.Amount
		}
	}
	return count, total
}

// ═══════════════════════════════════════════════════════════════════════════
// 组合
// ═══════════════════════════════════════════════════════════════════════════

// MultiReporter 依次转发给多个 Reporter
type MultiReporter []Reporter

// Report 实现 Reporter
func (m MultiReporter) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// sequencer 为事件补上全局序号和时间
type sequencer struct {
	next atomic.Int64
	out  Reporter
}

func (s *sequencer) Report(e Event) {
	e.Seq = s.next.Inc()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.out.Report(e)
}

// discard 丢弃所有事件
type discard struct{}

func (discard) Report(Event) {}
