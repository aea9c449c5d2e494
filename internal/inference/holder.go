package inference

import (
	"sync"
	"sync/atomic"
)

// Holder publishes the active predictor. Readers never block; a swap is
// visible to the next Load.
type Holder struct {
	current atomic.Pointer[Predictor]
	ready   chan struct{}
	once    sync.Once
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{ready: make(chan struct{})}
}

// Store makes p the active predictor. The first Store closes Ready.
func (h *Holder) Store(p *Predictor) {
	if p == nil {
		return
	}
	h.current.Store(p)
	h.once.Do(func() { close(h.ready) })
}

// Load returns the active predictor, or nil before the first Store.
func (h *Holder) Load() *Predictor {
	return h.current.Load()
}

// Ready is closed once a predictor is available.
func (h *Holder) Ready() <-chan struct{} {
	return h.ready
}

// IsReady reports whether a predictor is available.
func (h *Holder) IsReady() bool {
	select {
	case <-h.ready:
		return true
	default:
		return false
	}
}
