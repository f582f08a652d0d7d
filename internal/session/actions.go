package session

import (
	"github.com/kafka-investigator/kafka-investigator/internal/console"
)

// ConsumerAction 消费者菜单操作
type ConsumerAction int

const (
	ConsumerNext ConsumerAction = iota
	ConsumerPrintAssignment
	ConsumerPrintPartitions
	ConsumerCommitAssignment
	ConsumerForceAllPartitions
	ConsumerForceEarliest
	ConsumerForceByTime
	ConsumerBackToMessage
	ConsumerQuit
)

var consumerActions = []struct {
	action ConsumerAction
	key    rune
	label  string
	name   string
}{
	{ConsumerNext, 'n', "Next message", "next"},
	{ConsumerPrintAssignment, 'a', "Print assignment", "print_assignment"},
	{ConsumerPrintPartitions, 'p', "Print partitions", "print_partitions"},
	{ConsumerCommitAssignment, 'c', "Commit assignment (all partitions)", "commit_assignment"},
	{ConsumerForceAllPartitions, 'f', "Force assign all partitions", "force_all"},
	{ConsumerForceEarliest, 'e', "Force consume from earliest", "force_earliest"},
	{ConsumerForceByTime, 't', "Force consume by time", "force_by_time"},
	{ConsumerBackToMessage, 'm', "Back to message menu", "back"},
	{ConsumerQuit, 'q', "Quit", "quit"},
}

func (a ConsumerAction) String() string {
	for _, ca := range consumerActions {
		if ca.action == a {
			return ca.name
		}
	}
	return "unknown"
}

// Available 判断操作在当前状态下是否可用
func (a ConsumerAction) Available(state NavigationState) bool {
	switch a {
	case ConsumerCommitAssignment, ConsumerForceAllPartitions, ConsumerForceEarliest, ConsumerForceByTime:
		return !state.BeforeFirstPoll
	case ConsumerBackToMessage:
		return state.HasRecord
	default:
		return true
	}
}

// consumerOptions 当前可用的菜单项
func consumerOptions(state NavigationState) []console.Option {
	var options []console.Option
	for _, ca := range consumerActions {
		if ca.action.Available(state) {
			options = append(options, console.Option{Key: ca.key, Label: ca.label})
		}
	}
	return options
}

// parseConsumerAction 将按键解析为可用的操作
func parseConsumerAction(key rune, state NavigationState) (ConsumerAction, bool) {
	for _, ca := range consumerActions {
		if ca.key == key && ca.action.Available(state) {
			return ca.action, true
		}
	}
	return 0, false
}

// MessageAction 消息菜单操作
type MessageAction int

const (
	MessagePrintKey MessageAction = iota
	MessagePrintValue
	MessagePrintHeaders
	MessageReprintPreview
	MessagePrintSchemas
	MessagePrintDecoded
	MessageCommit
	MessageExport
	MessageBackToConsumer
	MessageNext
	MessageQuit
)

var messageActions = []struct {
	action MessageAction
	key    rune
	label  string
	name   string
}{
	{MessagePrintKey, 'k', "Print key", "print_key"},
	{MessagePrintValue, 'v', "Print value", "print_value"},
	{MessagePrintHeaders, 'h', "Print headers", "print_headers"},
	{MessageReprintPreview, 'r', "Reprint message preview", "reprint"},
	{MessagePrintSchemas, 's', "Print schemas", "print_schemas"},
	{MessagePrintDecoded, 'd', "Print decoded key and value", "print_decoded"},
	{MessageCommit, 'c', "Commit this message", "commit_message"},
	{MessageExport, 'x', "Export message to files", "export"},
	{MessageBackToConsumer, 'b', "Back to consumer menu", "back"},
	{MessageNext, 'n', "Next message", "next"},
	{MessageQuit, 'q', "Quit", "quit"},
}

func (a MessageAction) String() string {
	for _, ma := range messageActions {
		if ma.action == a {
			return ma.name
		}
	}
	return "unknown"
}

// Available 判断操作在当前状态下是否可用，schema相关操作还需要配置schema查询
func (a MessageAction) Available(state NavigationState, schemaLookup bool) bool {
	switch a {
	case MessageNext, MessageQuit:
		return true
	case MessagePrintSchemas, MessagePrintDecoded:
		return state.HasRecord && schemaLookup
	default:
		return state.HasRecord
	}
}

func messageOptions(state NavigationState, schemaLookup bool) []console.Option {
	var options []console.Option
	for _, ma := range messageActions {
		if ma.action.Available(state, schemaLookup) {
			options = append(options, console.Option{Key: ma.key, Label: ma.label})
		}
	}
	return options
}

func parseMessageAction(key rune, state NavigationState, schemaLookup bool) (MessageAction, bool) {
	for _, ma := range messageActions {
		if ma.key == key && ma.action.Available(state, schemaLookup) {
			return ma.action, true
		}
	}
	return 0, false
}
