package core

import (
	"container/heap"
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// PollReq asks the HAL loop to issue verb on a capability.
type PollReq struct {
	Addr  CapAddr
	Verb  string
	Every time.Duration
}

type pollKey struct {
	addr CapAddr
	verb string
}

type pollItem struct {
	key    pollKey
	due    time.Time
	every  time.Duration
	jitter time.Duration
	index  int
}

type pollHeap []*pollItem

func (h pollHeap) Len() int           { return len(h) }
func (h pollHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h pollHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *pollHeap) Push(x any)        { it := x.(*pollItem); it.index = len(*h); *h = append(*h, it) }
func (h *pollHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}

// Poller fires PollReqs on per-capability schedules. Requests are dropped
// when out is full; the next tick retries.
type Poller struct {
	mu    sync.Mutex
	wake  chan struct{}
	items map[pollKey]*pollItem
	h     pollHeap
	out   chan<- PollReq
}

func NewPoller(out chan<- PollReq) *Poller {
	return &Poller{
		wake:  make(chan struct{}, 1),
		items: make(map[pollKey]*pollItem),
		out:   out,
	}
}

// Upsert adds or updates a schedule. The first fire occurs after interval
// plus a random jitter in [0..jitter], as does every re-arm.
func (p *Poller) Upsert(a CapAddr, verb string, interval, jitter time.Duration) {
	if interval <= 0 || verb == "" {
		return
	}
	if jitter < 0 {
		jitter = 0
	}
	key := pollKey{addr: a, verb: verb}
	due := time.Now().Add(jittered(interval, jitter))

	p.mu.Lock()
	if it := p.items[key]; it == nil {
		it = &pollItem{key: key, due: due, every: interval, jitter: jitter, index: -1}
		p.items[key] = it
		heap.Push(&p.h, it)
	} else {
		it.every, it.jitter, it.due = interval, jitter, due
		heap.Fix(&p.h, it.index)
	}
	p.mu.Unlock()
	p.wakeup()
}

func (p *Poller) Stop(a CapAddr, verb string) {
	key := pollKey{addr: a, verb: verb}
	p.mu.Lock()
	if it := p.items[key]; it != nil {
		heap.Remove(&p.h, it.index)
		delete(p.items, key)
	}
	p.mu.Unlock()
	p.wakeup()
}

// BumpAfter postpones the next fire to one interval after last.
func (p *Poller) BumpAfter(a CapAddr, verb string, last time.Time) {
	key := pollKey{addr: a, verb: verb}
	p.mu.Lock()
	it := p.items[key]
	if it == nil {
		p.mu.Unlock()
		return
	}
	due := last.Add(it.every)
	if now := time.Now(); due.Before(now) {
		due = now
	}
	it.due = due
	heap.Fix(&p.h, it.index)
	p.mu.Unlock()
	p.wakeup()
}

// Len reports the number of schedules.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, ok := p.nextWait()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		if wait <= 0 {
			if fire, ok := p.popDue(); ok {
				select {
				case p.out <- fire:
				default:
				}
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

// popDue re-arms the earliest schedule if it is due and returns its request.
func (p *Poller) popDue() (PollReq, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.h) == 0 {
		return PollReq{}, false
	}
	top := p.h[0]
	now := time.Now()
	if top.due.After(now) {
		return PollReq{}, false
	}
	top.due = now.Add(jittered(top.every, top.jitter))
	heap.Fix(&p.h, top.index)
	return PollReq{Addr: top.key.addr, Verb: top.key.verb, Every: top.every}, true
}

func (p *Poller) nextWait() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.h) == 0 {
		return 0, false
	}
	return time.Until(p.h[0].due), true
}

func (p *Poller) wakeup() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func jittered(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	return interval + rand.N(jitter+1) // [0..jitter]
}
