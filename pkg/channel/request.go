package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/framechan/framechan/pkg/future"
	"github.com/framechan/framechan/pkg/wire"
)

// invocationTimeout bounds Get/Set/Invoke calls. Plain Request has no
// timeout and pends until the host answers.
const invocationTimeout = 5 * time.Second

// ErrInvocationTimeout rejects a bounded invocation whose completion never
// arrived. The message text is part of the protocol contract.
var ErrInvocationTimeout = errors.New("Invocation request timeout")

// HostError carries the host's failure payload verbatim when a request is
// answered with a fail event.
type HostError struct {
	Value any
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host rejected request: %v", e.Value)
}

type pendingRequest struct {
	fut     *future.Future
	timer   *time.Timer
	doneKey string
	failKey string
	onDone  Handler
	onFail  Handler
}

// Request sends descriptor to the host as a correlated request and returns
// the future that settles when the matching completion event arrives. The
// request is routed through the readiness gate; the correlation entry is
// retained until the host answers, however long that takes.
func (c *Client) Request(descriptor any) *future.Future {
	return c.startRequest(descriptor, 0)
}

type getDescriptor struct {
	URL any `json:"url"`
}

type setDescriptor struct {
	URL   string `json:"url"`
	Value any    `json:"value"`
}

type invokeDescriptor struct {
	Action string `json:"action"`
	Args   []any  `json:"args,omitempty"`
}

// Get requests the value at a path, or a mapping of values when more than
// one path is given. With no paths the descriptor carries an empty path
// list; what the host answers for it is host-defined. The returned future
// rejects with ErrInvocationTimeout if the host does not answer within
// five seconds.
func (c *Client) Get(paths ...string) *future.Future {
	var url any
	if len(paths) == 1 {
		url = paths[0]
	} else {
		if paths == nil {
			paths = []string{}
		}
		url = paths
	}
	return c.startRequest(getDescriptor{URL: url}, c.invTimeout)
}

// Set assigns value at path on the host. Same timeout contract as Get.
func (c *Client) Set(path string, value any) *future.Future {
	return c.startRequest(setDescriptor{URL: path, Value: value}, c.invTimeout)
}

// Invoke calls a named host action with optional arguments. Same timeout
// contract as Get.
func (c *Client) Invoke(action string, args ...any) *future.Future {
	return c.startRequest(invokeDescriptor{Action: action, Args: args}, c.invTimeout)
}

func (c *Client) startRequest(descriptor any, timeout time.Duration) *future.Future {
	fut := future.New()

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	p := &pendingRequest{
		fut:     fut,
		doneKey: wire.DoneKey(id),
		failKey: wire.FailKey(id),
	}
	p.onDone = func(data any) { c.settle(id, data, false) }
	p.onFail = func(data any) { c.settle(id, data, true) }

	c.On(p.doneKey, p.onDone)
	c.On(p.failKey, p.onFail)
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()

	payload, err := wire.Encode(wire.RequestKey(id), descriptor, c.appGUID)
	if err != nil {
		if _, ok := c.take(id); ok {
			fut.Reject(err)
		}
		return fut
	}

	if timeout > 0 {
		t := time.AfterFunc(timeout, func() {
			if _, ok := c.take(id); ok {
				fut.Reject(ErrInvocationTimeout)
			}
		})
		c.mu.Lock()
		if _, live := c.pending[id]; live {
			p.timer = t
		} else {
			t.Stop()
		}
		c.mu.Unlock()
	}

	if err := c.send(payload); err != nil {
		if _, ok := c.take(id); ok {
			fut.Reject(fmt.Errorf("channel request: %w", err))
		}
	}
	return fut
}

// take removes the correlation entry for id, stops its timer, and
// unregisters its completion handlers. ok=false means the entry was already
// settled or never existed; the caller must not touch the future then.
func (c *Client) take(id uint64) (*pendingRequest, bool) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	c.Off(p.doneKey, p.onDone)
	c.Off(p.failKey, p.onFail)
	return p, true
}

func (c *Client) settle(id uint64, data any, failed bool) {
	p, ok := c.take(id)
	if !ok {
		return
	}
	var val any
	if args := wire.ParseCompletion(data).ResponseArgs; len(args) > 0 {
		val = args[0]
	}
	if failed {
		p.fut.Reject(&HostError{Value: val})
	} else {
		p.fut.Resolve(val)
	}
}
