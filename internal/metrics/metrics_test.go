package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustRegisterTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}

func TestOutcome(t *testing.T) {
	boom := errors.New("boom")
	assert.Equal(t, "success", Outcome(nil, nil))
	assert.Equal(t, "error", Outcome(boom, nil))
	assert.Equal(t, "rejected", Outcome(boom, func(error) string { return "rejected" }))
	assert.Equal(t, "error", Outcome(boom, func(error) string { return "" }))
}
