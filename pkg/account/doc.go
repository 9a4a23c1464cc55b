// Package account 提供带阻塞取款的单账户监视器
//
// [Account] 是一个经典的"锁 + 条件变量"监视器：
//
//   - [Account.Deposit] 在临界区内增加余额，然后广播唤醒所有等待者
//   - [Account.Withdraw] 在余额不足时挂起（释放锁），被唤醒后循环重新检查
//   - [Account.Close] 是最后一次通知：拒绝后续存款，让无法满足的等待者退出
//
// 每次变更后都会校验不变量（余额非负、收支守恒），违反时返回
// [ErrInvariantViolation]。
//
// [Cond] 是支持中断的 FIFO 条件变量，Withdraw 用它把 ctx.Done() 接入等待，
// 这样停止信号可以唤醒一个永远等不到存款的取款者。
package account
