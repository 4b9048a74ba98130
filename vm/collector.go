package vm

import (
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Collector: mark-sweep over the heap arena
// ---------------------------------------------------------------------------

// CollectorStats holds statistics from a single collection.
type CollectorStats struct {
	Collections int // collections so far, this one included
	Marked      int
	Swept       int
	Live        int
	Duration    time.Duration
	Timestamp   time.Time
}

var collectorLog = commonlog.GetLogger("prota.collector")

// LastCollection returns statistics from the most recent collection.
func (vm *VM) LastCollection() CollectorStats {
	return vm.gcStats
}

// maybeCollect runs a collection when the allocation threshold has been
// reached. It is only called between instructions, where every live value
// is reachable from a root.
func (vm *VM) maybeCollect() {
	if t := vm.config.CollectThreshold; t > 0 && vm.Heap.allocs >= t {
		vm.Collect()
	}
}

// Collect frees every object not reachable from the roots: interned
// symbols, pinned values, the global tables, and for every active process
// its stacks, handlers and running natives. Freed handles are reused with a
// new generation, so stale references fail instead of aliasing.
func (vm *VM) Collect() CollectorStats {
	start := time.Now()
	h := vm.Heap
	m := &marker{h: h}

	for _, sym := range h.symbols {
		m.mark(sym)
	}
	for v := range h.pins {
		m.mark(v)
	}
	m.mark(vm.variables)
	m.mark(vm.functions)
	for _, p := range vm.procs {
		p.markRoots(m)
	}
	m.drain()

	swept := 0
	for idx := 1; idx < len(h.objects); idx++ {
		o := h.objects[idx]
		if o == nil {
			continue
		}
		if o.marked {
			o.marked = false
			continue
		}
		h.objects[idx] = nil
		h.gens[idx] = (h.gens[idx] + 1) & refGenMask
		h.free = append(h.free, uint32(idx))
		h.live--
		swept++
	}
	h.allocs = 0

	vm.gcStats = CollectorStats{
		Collections: vm.gcStats.Collections + 1,
		Marked:      m.count,
		Swept:       swept,
		Live:        h.live,
		Duration:    time.Since(start),
		Timestamp:   start,
	}
	collectorLog.Infof("vm %s: collection %d marked %d swept %d in %s",
		vm.ID, vm.gcStats.Collections, m.count, swept, vm.gcStats.Duration)
	return vm.gcStats
}

type marker struct {
	h     *Heap
	work  []*Object
	count int
}

func (m *marker) mark(v Value) {
	if !v.IsRef() {
		return
	}
	o, err := m.h.raw(v)
	if err != nil || o.marked {
		return
	}
	o.marked = true
	m.count++
	m.work = append(m.work, o)
}

func (m *marker) drain() {
	for len(m.work) > 0 {
		o := m.work[len(m.work)-1]
		m.work = m.work[:len(m.work)-1]
		m.mark(o.cls)
		m.mark(o.forward)
		for _, v := range o.slots {
			m.mark(v)
		}
	}
}

func (p *Process) markRoots(m *marker) {
	for _, v := range p.stack[:p.sp+1] {
		m.mark(v)
	}
	for i := 0; i <= p.fp; i++ {
		f := &p.frames[i]
		m.mark(f.fn)
		m.mark(f.literals)
		m.mark(f.closure)
		m.mark(f.rcvr)
		m.mark(f.impl)
	}
	for _, v := range p.natives {
		m.mark(v)
	}
	for hd := p.handlers; hd != nil; hd = hd.prev {
		m.mark(hd.clauses)
		if hd.ex != nil {
			m.mark(hd.ex.Data)
		}
	}
}
