package recovery

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRecoveryNamed(t *testing.T) {
	var seen string
	OnPanic = func(name string, _ interface{}, _ string) { seen = name }
	defer func() { OnPanic = nil }()

	ok := WithRecoveryNamed("verifier", func() { panic("boom") })
	assert.False(t, ok)
	assert.Equal(t, "verifier", seen)

	assert.True(t, WithRecoveryNamed("noop", func() {}))
}

func TestWithRecovery_RunsInBackground(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	WithRecovery(func() {
		defer wg.Done()
		panic("background")
	}, "bg")
	wg.Wait()
}
