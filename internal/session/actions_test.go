package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func keys(state NavigationState, menu Menu, schemaLookup bool) string {
	var out []rune
	if menu == ConsumerMenu {
		for _, o := range consumerOptions(state) {
			out = append(out, o.Key)
		}
	} else {
		for _, o := range messageOptions(state, schemaLookup) {
			out = append(out, o.Key)
		}
	}
	return string(out)
}

func TestConsumerOptions(t *testing.T) {
	for _, tc := range []struct {
		name  string
		state NavigationState
		want  string
	}{
		{name: "before first poll", state: NavigationState{BeforeFirstPoll: true}, want: "napq"},
		{name: "after empty poll", state: NavigationState{}, want: "napcfetq"},
		{name: "with record", state: NavigationState{HasRecord: true}, want: "napcfetmq"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, keys(tc.state, ConsumerMenu, false))
		})
	}
}

func TestMessageOptions(t *testing.T) {
	withRecord := NavigationState{Menu: MessageMenu, HasRecord: true}
	assert.Equal(t, "kvhrcxbnq", keys(withRecord, MessageMenu, false))
	assert.Equal(t, "kvhrsdcxbnq", keys(withRecord, MessageMenu, true))
	assert.Equal(t, "nq", keys(NavigationState{Menu: MessageMenu}, MessageMenu, true))
}

func TestParseActions(t *testing.T) {
	before := NavigationState{BeforeFirstPoll: true}

	a, ok := parseConsumerAction('n', before)
	assert.True(t, ok)
	assert.Equal(t, ConsumerNext, a)

	_, ok = parseConsumerAction('c', before)
	assert.False(t, ok)
	_, ok = parseConsumerAction('z', NavigationState{})
	assert.False(t, ok)

	m, ok := parseMessageAction('x', NavigationState{HasRecord: true}, false)
	assert.True(t, ok)
	assert.Equal(t, MessageExport, m)

	_, ok = parseMessageAction('s', NavigationState{HasRecord: true}, false)
	assert.False(t, ok)
}

func TestActionNames(t *testing.T) {
	assert.Equal(t, "commit_assignment", ConsumerCommitAssignment.String())
	assert.Equal(t, "print_decoded", MessagePrintDecoded.String())
	assert.Equal(t, "unknown", ConsumerAction(99).String())
	assert.Equal(t, "message_menu", SignalMessageMenu.String())
	assert.Equal(t, "consumer", ConsumerMenu.String())
}
