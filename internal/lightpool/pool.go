// Package lightpool manages a fixed set of reusable point-light handles,
// each lent to at most one named owner at a time.
package lightpool

import (
	"errors"
	"fmt"
	"sort"

	"github.com/megameal/fireflies/internal/geom"
	"go.uber.org/zap"
)

// ErrInvalidCapacity is returned by New for a capacity below one.
var ErrInvalidCapacity = errors.New("lightpool: capacity must be positive")

// Handle is one pooled point light as the renderer sees it.
type Handle struct {
	Visible   bool
	Position  geom.Vec3
	Color     geom.Color
	Intensity float64
	Falloff   float64 // distance at which the light reaches zero
}

// Patch carries optional updates for a handle; nil fields are left as-is.
type Patch struct {
	Position  *geom.Vec3
	Color     *geom.Color
	Intensity *float64
	Falloff   *float64
}

// Occupancy is a diagnostic snapshot of the pool.
type Occupancy struct {
	Capacity  int
	Active    int
	Available int
	Owners    []string // sorted
}

// Pool lends handles to owners. The handle slice is allocated once and never
// resized. Accessed only from the frame loop goroutine, no locks.
type Pool struct {
	handles  []Handle
	owner    []string       // handle index → owner, "" when free
	owned    map[string]int // owner → handle index
	freeList []int
	log      *zap.Logger

	exhausted uint64
}

// New allocates a pool of capacity invisible handles.
func New(capacity int, log *zap.Logger) (*Pool, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		handles:  make([]Handle, capacity),
		owner:    make([]string, capacity),
		owned:    make(map[string]int, capacity),
		freeList: make([]int, 0, capacity),
		log:      log,
	}
	// Hand out low indices first.
	for i := capacity - 1; i >= 0; i-- {
		p.freeList = append(p.freeList, i)
	}
	log.Info("light pool created", zap.Int("capacity", capacity))
	return p, nil
}

func (p *Pool) Capacity() int { return len(p.handles) }
func (p *Pool) Active() int   { return len(p.owned) }

// Exhausted counts Request calls turned away for lack of a free handle.
func (p *Pool) Exhausted() uint64 { return p.exhausted }

// Request lends a handle to owner. An owner that already holds a handle gets
// the same one back. The second result is false when no handle is free,
// which is an ordinary outcome rather than an error.
func (p *Pool) Request(owner string) (*Handle, bool) {
	if i, ok := p.owned[owner]; ok {
		return &p.handles[i], true
	}
	if len(p.freeList) == 0 {
		p.exhausted++
		p.log.Debug("no free light in pool", zap.String("owner", owner))
		return nil, false
	}
	i := p.freeList[len(p.freeList)-1]
	p.freeList = p.freeList[:len(p.freeList)-1]
	p.owner[i] = owner
	p.owned[owner] = i
	p.handles[i].Visible = true
	return &p.handles[i], true
}

// Release returns owner's handle to the pool, switched off. Releasing an
// owner that holds nothing is a no-op that returns false.
func (p *Pool) Release(owner string) bool {
	i, ok := p.owned[owner]
	if !ok {
		return false
	}
	h := &p.handles[i]
	h.Visible = false
	h.Intensity = 0
	p.owner[i] = ""
	delete(p.owned, owner)
	p.freeList = append(p.freeList, i)
	return true
}

// Update applies the non-nil fields of patch to owner's handle. It returns
// false if owner holds nothing.
func (p *Pool) Update(owner string, patch Patch) bool {
	i, ok := p.owned[owner]
	if !ok {
		return false
	}
	h := &p.handles[i]
	if patch.Position != nil {
		h.Position = *patch.Position
	}
	if patch.Color != nil {
		h.Color = *patch.Color
	}
	if patch.Intensity != nil {
		h.Intensity = *patch.Intensity
	}
	if patch.Falloff != nil {
		h.Falloff = *patch.Falloff
	}
	return true
}

// Lookup returns a copy of owner's handle.
func (p *Pool) Lookup(owner string) (Handle, bool) {
	i, ok := p.owned[owner]
	if !ok {
		return Handle{}, false
	}
	return p.handles[i], true
}

// Handles calls fn for every handle in index order, with its owner ("" when
// free). This is the renderer's read-back path.
func (p *Pool) Handles(fn func(index int, owner string, h Handle)) {
	for i := range p.handles {
		fn(i, p.owner[i], p.handles[i])
	}
}

// Snapshot reports current occupancy.
func (p *Pool) Snapshot() Occupancy {
	owners := make([]string, 0, len(p.owned))
	for o := range p.owned {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return Occupancy{
		Capacity:  len(p.handles),
		Active:    len(p.owned),
		Available: len(p.handles) - len(p.owned),
		Owners:    owners,
	}
}

// Dispose releases every handle.
func (p *Pool) Dispose() {
	owners := make([]string, 0, len(p.owned))
	for o := range p.owned {
		owners = append(owners, o)
	}
	for _, o := range owners {
		p.Release(o)
	}
	p.log.Info("light pool disposed", zap.Int("capacity", len(p.handles)))
}

// CheckInvariants verifies that owners and handles are in one-to-one
// correspondence and that the free list holds exactly the unowned handles.
func (p *Pool) CheckInvariants() error {
	if len(p.owned)+len(p.freeList) != len(p.handles) {
		return fmt.Errorf("owned %d + free %d != capacity %d", len(p.owned), len(p.freeList), len(p.handles))
	}
	seen := make(map[int]string, len(p.owned))
	for o, i := range p.owned {
		if prev, dup := seen[i]; dup {
			return fmt.Errorf("handle %d owned by %q and %q", i, prev, o)
		}
		seen[i] = o
		if p.owner[i] != o {
			return fmt.Errorf("handle %d back-reference %q, want %q", i, p.owner[i], o)
		}
		if !p.handles[i].Visible {
			return fmt.Errorf("owned handle %d not visible", i)
		}
	}
	for _, i := range p.freeList {
		if p.owner[i] != "" {
			return fmt.Errorf("free handle %d still owned by %q", i, p.owner[i])
		}
	}
	return nil
}
