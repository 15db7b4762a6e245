package common

// PlanePool recycles planes for streaming frame processing. Frames of a
// sequence share one size, so a pool only keeps planes of the size most
// recently requested. A PlanePool is not safe for concurrent use.
type PlanePool struct {
	width    int
	height   int
	free     []*Plane
	capacity int
}

// NewPlanePool creates a pool that keeps at most capacity idle planes
func NewPlanePool(capacity int) *PlanePool {
	capacity = max(capacity, 1)
	return &PlanePool{
		free:     make([]*Plane, 0, capacity),
		capacity: capacity,
	}
}

// Get returns a width x height plane. Recycled planes are not cleared.
func (pp *PlanePool) Get(width, height int) *Plane {
	if width != pp.width || height != pp.height {
		// Size changed, old planes can't be reused
		pp.Clear()
		pp.width, pp.height = width, height
	}

	if n := len(pp.free); n > 0 {
		p := pp.free[n-1]
		pp.free[n-1] = nil
		pp.free = pp.free[:n-1]
		return p
	}
	return NewPlane(width, height)
}

// Put hands p back to the pool. Planes of another size, or beyond the
// pool capacity, are dropped.
func (pp *PlanePool) Put(p *Plane) {
	if p == nil || p.Width != pp.width || p.Height != pp.height {
		return
	}
	if len(pp.free) >= pp.capacity {
		return
	}
	pp.free = append(pp.free, p)
}

// Available returns the number of idle planes
func (pp *PlanePool) Available() int {
	return len(pp.free)
}

// Clear drops all idle planes
func (pp *PlanePool) Clear() {
	for i := range pp.free {
		pp.free[i] = nil
	}
	pp.free = pp.free[:0]
}
