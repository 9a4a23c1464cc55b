// Package sim 在 Actor 运行时上演示存款方与取款方竞争同一账户
//
// 两个 Actor 都靠自消息驱动循环，停止信号只在两次迭代之间生效：
//
//   - [DepositActor] 存入一笔金额，上报事件，然后用 ScheduleOnce 等待下一次
//   - [WithdrawActor] 取出一笔金额（余额不足时阻塞在账户中），上报事件，立即进入下一次
//
// [Runner] 负责创建账户、启动两个 Actor，并在时长用尽、迭代完成、外部取消
// 或出现失败时停止它们。返回前关闭账户作为最后一次通知，并等待所有 Actor 退出。
//
// 基本用法：
//
//	result, err := sim.NewRunner(cfg, sim.WithReporter(sim.NewWriterReporter(os.Stdout))).Run(ctx)
package sim
