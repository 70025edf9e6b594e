// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package verifier

import (
	"runtime"
	"sync"
)

// structPowTask is one unit of a batch-prepare's parallel stage: a
// candidate block's index plus the work to run against it.
type structPowTask struct {
	index int
	fn    func() (PreparedBlock, error)
}

// runStructPowPool fans tasks out across a bounded goroutine pool and
// collects results in task order, mirroring the teacher's
// stateObjectEncoder worker-pool shape (a fixed goroutine count
// draining a shared channel) generalized from state encoding to batch
// block preparation.
func runStructPowPool(tasks []structPowTask, workers int) ([]PreparedBlock, []error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]PreparedBlock, len(tasks))
	errs := make([]error, len(tasks))

	taskCh := make(chan structPowTask, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range taskCh {
				pb, err := t.fn()
				results[t.index] = pb
				errs[t.index] = err
			}
		}()
	}
	wg.Wait()

	return results, errs
}
