package channel

import "reflect"

// Handler is an event callback. Registration identity is the handler's
// function pointer, so the same Handler value can be registered multiple
// times and removed one registration at a time.
type Handler func(data any)

type registration struct {
	fn  Handler
	key uintptr
}

func handlerKey(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// On registers h for event. A nil handler is silently ignored. The same
// handler may be registered more than once; Trigger fires registrations in
// registration order.
func (c *Client) On(event string, h Handler) {
	if h == nil {
		return
	}
	reg := registration{fn: h, key: handlerKey(h)}
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], reg)
	c.mu.Unlock()
}

// Off removes the first registration of h under event. It returns the
// removed handler and true, or nil and false when no matching registration
// exists.
func (c *Client) Off(event string, h Handler) (Handler, bool) {
	if h == nil {
		return nil, false
	}
	key := handlerKey(h)

	c.mu.Lock()
	defer c.mu.Unlock()
	regs, ok := c.handlers[event]
	if !ok {
		return nil, false
	}
	for i, reg := range regs {
		if reg.key == key {
			removed := reg.fn
			c.handlers[event] = append(regs[:i:i], regs[i+1:]...)
			if len(c.handlers[event]) == 0 {
				delete(c.handlers, event)
			}
			return removed, true
		}
	}
	return nil, false
}

// Has reports whether event has any handler, or whether h specifically is
// registered under it when h is given.
func (c *Client) Has(event string, h ...Handler) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	regs, ok := c.handlers[event]
	if !ok || len(regs) == 0 {
		return false
	}
	if len(h) == 0 || h[0] == nil {
		return true
	}
	key := handlerKey(h[0])
	for _, reg := range regs {
		if reg.key == key {
			return true
		}
	}
	return false
}

// Trigger invokes every handler registered for event in registration order,
// passing data. It returns false when no handlers were registered. A
// panicking handler is recovered so the remaining handlers still run.
func (c *Client) Trigger(event string, data any) bool {
	c.mu.Lock()
	regs := c.handlers[event]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	c.mu.Unlock()

	if len(snapshot) == 0 {
		return false
	}
	for _, reg := range snapshot {
		c.invoke(event, reg.fn, data)
	}
	return true
}

func (c *Client) invoke(event string, h Handler, data any) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panic", "event", event, "panic", r)
		}
	}()
	h(data)
}
