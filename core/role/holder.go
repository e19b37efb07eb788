package role

import "sync/atomic"

// Holder publishes the current Resolver. Reloads swap the whole snapshot,
// so a caller never observes a partially updated configuration.
type Holder struct {
	current atomic.Pointer[Resolver]
}

var _ Classifier = (*Holder)(nil)

func NewHolder(r *Resolver) *Holder {
	h := new(Holder)
	h.Store(r)
	return h
}

func (h *Holder) Load() *Resolver { return h.current.Load() }

func (h *Holder) Store(r *Resolver) {
	if r == nil {
		r = NewResolver(nil)
	}
	h.current.Store(r)
}

func (h *Holder) Classify(email string) (Role, bool) {
	return h.Load().Classify(email)
}

// IsAllowed goes through Classify so both answers come from the same snapshot.
func (h *Holder) IsAllowed(email string) bool {
	_, ok := h.Classify(email)
	return ok
}

func (h *Holder) Rules() *Rules { return h.Load().Rules() }
