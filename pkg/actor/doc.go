// Package actor 提供轻量级 Actor 运行时
//
// 每个 Actor 是独立的计算单元：
// • 拥有私有状态，由自己的 goroutine 串行处理邮箱中的消息
// • 通过 [PID.Tell] 异步通信，通过 [Context.ScheduleOnce] 给自己发定时消息
// • 生命周期 context 在停止时取消，阻塞在 Receive 中的调用可以借此退出
//
// # 核心组件
//
// [System] 是 Actor 系统的入口，管理所有 Actor 的生命周期：
//
//	sys := actor.NewSystem("my-system")
//	defer sys.Shutdown()
//
// [Actor] 接口定义消息处理行为，[ActorFunc] 提供函数式快捷方式。
//
// [PID] 是 Actor 的唯一标识，[PID.Done] 在 Actor 终止后关闭。
//
// # 停止
//
// [System.Stop] 把 [PoisonPill] 放入邮箱，在当前消息处理完后生效（消息边界）。
// [System.ShutdownWithTimeout] 停止所有 Actor、取消所有 context 并等待
// 全部 goroutine 退出，超时返回错误。
//
// # 监督策略
//
// Receive 中的 panic 或 [Context.Err] 报告的错误交给 [SupervisorStrategy]：
// DirectiveResume 继续，DirectiveRestart 重启，DirectiveStop 停止，
// DirectiveEscalate 上报到系统，此时 [System.Failed] 关闭、[System.Err] 返回原因。
//
// # 系统消息
//
// [Started] 启动完成（重启后再次收到），[Restarting] 正在重启，
// [Stopping] 正在停止，[Stopped] 已停止。
package actor
