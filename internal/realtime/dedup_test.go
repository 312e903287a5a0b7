package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupDropsRepeatedEvents(t *testing.T) {
	calls := 0
	h := Dedup(func(ChangeEvent) { calls++ }, 4)

	ev := ChangeEvent{ID: "e1"}
	h(ev)
	h(ev)
	h(ChangeEvent{ID: "e2"})
	h(ev)

	assert.Equal(t, 2, calls)
}

func TestDedupForgetsBeyondWindow(t *testing.T) {
	calls := 0
	h := Dedup(func(ChangeEvent) { calls++ }, 2)

	h(ChangeEvent{ID: "a"})
	h(ChangeEvent{ID: "b"})
	h(ChangeEvent{ID: "c"}) // 挤出 a
	h(ChangeEvent{ID: "a"})

	assert.Equal(t, 4, calls)
}
