package event

import (
	"sync"
)

type Handler func(message string)

// Dispatcher fans each message out to the catch-all handlers (OnAny) and
// then to the handlers registered with On under a name exactly equal to the
// message. Handlers are never removed; one registered from inside a handler
// takes effect from the next Dispatch.
type Dispatcher struct {
	mx       sync.RWMutex
	catchAll []Handler
	named    map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		named: make(map[string][]Handler),
	}
}

func (d *Dispatcher) OnAny(h Handler) {
	if h == nil {
		return
	}

	d.mx.Lock()
	defer d.mx.Unlock()

	d.catchAll = append(d.catchAll, h)
}

func (d *Dispatcher) On(name string, h Handler) {
	if h == nil {
		return
	}

	d.mx.Lock()
	defer d.mx.Unlock()

	d.named[name] = append(d.named[name], h)
}

// Dispatch delivers message and returns the number of handlers it ran.
func (d *Dispatcher) Dispatch(message string) int {
	anyHandlers, namedHandlers := d.snapshot(message)

	for _, h := range anyHandlers {
		h(message)
	}

	for _, h := range namedHandlers {
		h(message)
	}

	return len(anyHandlers) + len(namedHandlers)
}

func (d *Dispatcher) snapshot(message string) ([]Handler, []Handler) {
	d.mx.RLock()
	defer d.mx.RUnlock()

	// Appends never write below len, so the returned slices stay stable
	// while handlers register more.
	return d.catchAll, d.named[message]
}
