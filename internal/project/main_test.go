package project

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no goroutine survives the tests: compile jobs, scratch
// eviction tasks, and watcher goroutines must all drain through Close/Stop.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
