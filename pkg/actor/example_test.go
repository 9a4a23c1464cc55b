package actor_test

import (
	"errors"
	"fmt"
	"time"

	"github.com/lwmacct/251216-go-pkg-bank/pkg/actor"
)

// PingMessage 示例消息类型
type PingMessage struct{}

func (m *PingMessage) Kind() string { return "ping" }

// CountMessage 计数器消息
type CountMessage struct {
	Value int
}

func (m *CountMessage) Kind() string { return "count" }

// tick 定时消息
type tick struct{}

func (t *tick) Kind() string { return "tick" }

// Example_basic 演示 Actor 系统的基本使用
func Example_basic() {
	sys := actor.NewSystem("example")
	defer sys.Shutdown()

	pid := sys.Spawn(actor.ActorFunc(func(ctx *actor.Context, msg actor.Message) {
		switch msg.(type) {
		case *actor.Started:
			fmt.Println("Actor started")
		case *PingMessage:
			fmt.Println("Received Ping")
		case *actor.Stopped:
			fmt.Println("Actor stopped")
		}
	}), "greeter")

	pid.Tell(&PingMessage{})
	_ = sys.StopGracefully(pid, time.Second)

	// Output:
	// Actor started
	// Received Ping
	// Actor stopped
}

// Example_actorFunc 演示函数式 Actor，状态只在 Actor 自己的 goroutine 中修改
func Example_actorFunc() {
	sys := actor.NewSystem("func-example")
	defer sys.Shutdown()

	counter := 0
	pid := sys.Spawn(actor.ActorFunc(func(ctx *actor.Context, msg actor.Message) {
		if m, ok := msg.(*CountMessage); ok {
			counter += m.Value
			fmt.Printf("Counter: %d\n", counter)
		}
	}), "counter")

	pid.Tell(&CountMessage{Value: 1})
	pid.Tell(&CountMessage{Value: 2})
	pid.Tell(&CountMessage{Value: 3})
	_ = sys.StopGracefully(pid, time.Second)

	// Output:
	// Counter: 1
	// Counter: 3
	// Counter: 6
}

// Example_scheduleOnce 演示通过定时自消息驱动的循环
func Example_scheduleOnce() {
	sys := actor.NewSystem("schedule-example")
	defer sys.Shutdown()

	remaining := 3
	pid := sys.Spawn(actor.ActorFunc(func(ctx *actor.Context, msg actor.Message) {
		switch msg.(type) {
		case *actor.Started, *tick:
			if remaining == 0 {
				fmt.Println("done")
				ctx.StopSelf()
				return
			}
			fmt.Printf("tick %d\n", remaining)
			remaining--
			ctx.ScheduleOnce(&tick{}, 5*time.Millisecond)
		}
	}), "ticker")

	<-pid.Done()

	// Output:
	// tick 3
	// tick 2
	// tick 1
	// done
}

// Example_escalate 演示把不可恢复的错误上报到系统
func Example_escalate() {
	sys := actor.NewSystem("escalate-example")
	defer sys.Shutdown()

	errCorrupt := errors.New("state corrupted")

	props := actor.DefaultProps("worker").
		WithSupervisor(actor.NewOneForOneStrategy(3, time.Minute, func(reason any) actor.Directive {
			if err, ok := reason.(error); ok && errors.Is(err, errCorrupt) {
				return actor.DirectiveEscalate
			}
			return actor.DirectiveRestart
		}))

	pid := sys.SpawnWithProps(actor.ActorFunc(func(ctx *actor.Context, msg actor.Message) {
		if _, ok := msg.(*PingMessage); ok {
			ctx.Err(errCorrupt)
		}
	}), props)

	pid.Tell(&PingMessage{})

	<-sys.Failed()
	fmt.Println(sys.Err())

	// Output:
	// actor worker: state corrupted
}
