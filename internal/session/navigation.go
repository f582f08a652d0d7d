package session

// Menu 当前所在菜单
type Menu int

const (
	ConsumerMenu Menu = iota
	MessageMenu
)

func (m Menu) String() string {
	switch m {
	case ConsumerMenu:
		return "consumer"
	case MessageMenu:
		return "message"
	default:
		return "unknown"
	}
}

// NavigationState 决定菜单中可用的操作
type NavigationState struct {
	Menu            Menu
	HasRecord       bool
	BeforeFirstPoll bool
}

// Signal 菜单处理结束后交给调度循环的导航信号
type Signal int

const (
	// SignalContinueConsume 拉取下一条消息
	SignalContinueConsume Signal = iota
	// SignalStopConsume 结束会话
	SignalStopConsume
	// SignalConsumerMenu 进入消费者菜单
	SignalConsumerMenu
	// SignalMessageMenu 进入消息菜单
	SignalMessageMenu
)

func (s Signal) String() string {
	switch s {
	case SignalContinueConsume:
		return "continue_consume"
	case SignalStopConsume:
		return "stop_consume"
	case SignalConsumerMenu:
		return "consumer_menu"
	case SignalMessageMenu:
		return "message_menu"
	default:
		return "unknown"
	}
}
