package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_UnsubscribeIsIdempotent(t *testing.T) {
	calls := 0
	sub := NewSubscription(func() { calls++ })

	sub.Unsubscribe()
	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Equal(t, 1, calls)
}

func TestNoop_Unsubscribe(t *testing.T) {
	assert.NotPanics(t, func() {
		sub := Noop()
		sub.Unsubscribe()
		sub.Unsubscribe()
	})
}
