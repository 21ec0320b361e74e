package vm

import (
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// GC: Mark-sweep collector over the engine heap
// ---------------------------------------------------------------------------

// The engine tracks every collectable object it allocates (strings, tables,
// prototypes, closures, upvalues) in a registry. A collection marks the
// registry's reachable subset from the State's roots and drops the rest, so
// the host runtime can reclaim them. Reachable objects keep their identity
// across collections.

const gcInitThreshold = 512

// GCStats reports collector counters.
type GCStats struct {
	ObjectCount  int // live registry size
	Collections  int // completed collections
	TotalFreed   int // objects dropped over all collections
	LastFreed    int // objects dropped by the latest collection
	LastDuration time.Duration
}

// GC owns the object registry and decides when to collect. The dispatcher
// calls CheckGC once per opcode; a collection runs when the registry grows
// past an adaptive watermark.
type GC struct {
	state     *State
	objects   map[any]struct{}
	threshold int
	stats     GCStats
	log       commonlog.Logger
}

func newGC(state *State) *GC {
	return &GC{
		state:     state,
		objects:   make(map[any]struct{}),
		threshold: gcInitThreshold,
		log:       commonlog.GetLogger("selene.gc"),
	}
}

// track registers a freshly allocated collectable object.
func (g *GC) track(obj any) {
	g.objects[obj] = struct{}{}
}

// ObjectCount returns the live registry size.
func (g *GC) ObjectCount() int {
	return len(g.objects)
}

// Stats returns a snapshot of the collector counters.
func (g *GC) Stats() GCStats {
	s := g.stats
	s.ObjectCount = len(g.objects)
	return s
}

// CheckGC runs a collection when the registry has outgrown the watermark.
// Called once per opcode; a collection may therefore happen at any
// instruction boundary.
func (g *GC) CheckGC() {
	if len(g.objects) >= g.threshold {
		g.Collect()
	}
}

// Collect performs a full mark-sweep and returns the number of objects
// dropped. Roots are enumerated by the State: the global table, the live
// stack prefix, every frame's slots and register window, and every reachable
// closure's prototype and upvalue list (transitively via marking).
func (g *GC) Collect() int {
	start := time.Now()
	before := len(g.objects)

	marked := make(map[any]struct{}, before)
	g.state.markRoots(func(v Value) {
		g.markValue(v, marked)
	})

	freed := 0
	for obj := range g.objects {
		if _, ok := marked[obj]; !ok {
			delete(g.objects, obj)
			freed++
		}
	}
	g.state.stringPool.Sweep(marked)

	// Watermark: collect again once the survivors double, with a floor.
	g.threshold = len(g.objects) * 2
	if g.threshold < gcInitThreshold {
		g.threshold = gcInitThreshold
	}

	g.stats.Collections++
	g.stats.TotalFreed += freed
	g.stats.LastFreed = freed
	g.stats.LastDuration = time.Since(start)
	g.log.Debugf("collection: %d -> %d objects (%d freed, %s)",
		before, len(g.objects), freed, g.stats.LastDuration)
	return freed
}

// markValue marks the object a cell references and everything reachable
// from it.
func (g *GC) markValue(v Value, marked map[any]struct{}) {
	switch v.Type {
	case TypeString:
		if v.Str != nil {
			marked[any(v.Str)] = struct{}{}
		}
	case TypeTable:
		g.markTable(v.Table, marked)
	case TypeClosure:
		g.markClosure(v.Closure, marked)
	case TypeUpvalue:
		g.markUpvalue(v.Upvalue, marked)
	}
}

func (g *GC) markTable(t *Table, marked map[any]struct{}) {
	if t == nil {
		return
	}
	if _, ok := marked[any(t)]; ok {
		return
	}
	marked[any(t)] = struct{}{}
	t.visit(func(v Value) {
		g.markValue(v, marked)
	})
}

func (g *GC) markClosure(c *Closure, marked map[any]struct{}) {
	if c == nil {
		return
	}
	if _, ok := marked[any(c)]; ok {
		return
	}
	marked[any(c)] = struct{}{}
	g.markFunction(c.proto, marked)
	// The upvalue list must be marked here: once the creating frame has
	// returned, no stack cell reaches these upvalues.
	for _, u := range c.upvalues {
		g.markUpvalue(u, marked)
	}
}

func (g *GC) markUpvalue(u *Upvalue, marked map[any]struct{}) {
	if u == nil {
		return
	}
	if _, ok := marked[any(u)]; ok {
		return
	}
	marked[any(u)] = struct{}{}
	g.markValue(u.value, marked)
}

func (g *GC) markFunction(f *Function, marked map[any]struct{}) {
	if f == nil {
		return
	}
	if _, ok := marked[any(f)]; ok {
		return
	}
	marked[any(f)] = struct{}{}
	for _, c := range f.constants {
		g.markValue(c, marked)
	}
	for _, child := range f.children {
		g.markFunction(child, marked)
	}
	if f.module != nil {
		marked[any(f.module)] = struct{}{}
	}
	for i := range f.upvalues {
		if f.upvalues[i].Name != nil {
			marked[any(f.upvalues[i].Name)] = struct{}{}
		}
	}
	for i := range f.localVars {
		if f.localVars[i].Name != nil {
			marked[any(f.localVars[i].Name)] = struct{}{}
		}
	}
}
