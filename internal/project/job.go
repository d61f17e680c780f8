package project

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// jobRunner dispatches compile jobs to a bounded worker pool and feeds each
// finished artifact back into the interrupt queue, keeping all state
// mutation on the loop goroutine.
type jobRunner struct {
	group *errgroup.Group

	// scratchWg tracks fire-and-forget eviction tasks so Close can drain
	// them.
	scratchWg sync.WaitGroup

	results chan<- Interrupt
}

func newJobRunner(maxJobs int, results chan<- Interrupt) *jobRunner {
	if maxJobs <= 0 {
		maxJobs = runtime.GOMAXPROCS(0)
	}
	g := &errgroup.Group{}
	g.SetLimit(maxJobs)
	return &jobRunner{group: g, results: results}
}

// submit runs a compile job on the pool; its artifact re-enters the loop as
// a Compiled interrupt.
func (j *jobRunner) submit(run func() *CompiledArtifact) {
	j.group.Go(func() error {
		artifact := run()
		j.results <- InterruptCompiled{Artifact: artifact}
		return nil
	})
}

// scratch runs a fire-and-forget background task (cache eviction).
func (j *jobRunner) scratch(fn func()) {
	j.scratchWg.Add(1)
	go func() {
		defer j.scratchWg.Done()
		fn()
	}()
}

// wait blocks until all submitted and scratch work has finished.
func (j *jobRunner) wait() {
	_ = j.group.Wait()
	j.scratchWg.Wait()
}
