package bridge

import (
	"context"
	"fmt"

	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

// Proxy is one script-side holder of a by-reference instance. Proxies for the
// same handle share state; each holder releases exactly once.
type Proxy struct {
	b    *Bridge
	inst *instance
}

// Handle returns the bridge-assigned id.
func (p *Proxy) Handle() uint32 {
	return uint32(p.inst.h)
}

// Class returns the canonical class name.
func (p *Proxy) Class() string {
	return p.inst.class.FullName()
}

// State returns the lifecycle state.
func (p *Proxy) State() State {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.inst.state
}

// Refs returns the number of script-side holders. Zero once released.
func (p *Proxy) Refs() int32 {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if p.inst.state == Released {
		return 0
	}
	n, _ := p.b.table.Refs(p.inst.h)
	return n
}

// Call invokes an instance method. The method is chosen by name and arity.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) *Future {
	c := p.inst.class
	if c.Member(model.Method, method, false, len(args)) == nil {
		return failedFuture(errors.NotFound(errors.PhaseBridge, "method", fmt.Sprintf("%s.%s/%d", c.FullName(), method, len(args))))
	}
	wire, err := p.b.codec.encodeAll(args)
	if err != nil {
		return failedFuture(err)
	}

	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.b.issue(ctx, p.inst, MsgCall, method, wire, dependencies(args))
}

// Get reads a property of the native instance.
func (p *Proxy) Get(ctx context.Context, property string) *Future {
	mem := p.inst.class.Property(property)
	if mem == nil || mem.Static {
		return failedFuture(errors.NotFound(errors.PhaseBridge, "property", p.Class()+"."+property))
	}

	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.b.issue(ctx, p.inst, MsgPropertyGet, property, nil, nil)
}

// Set writes a property of the native instance.
func (p *Proxy) Set(ctx context.Context, property string, value any) *Future {
	mem := p.inst.class.Property(property)
	if mem == nil || mem.Static {
		return failedFuture(errors.NotFound(errors.PhaseBridge, "property", p.Class()+"."+property))
	}
	if !mem.AnySetter() {
		return failedFuture(errors.New(errors.PhaseBridge, errors.KindUnsupported).
			Path(p.Class(), property).
			Detail("property has no setter").
			Build())
	}
	wire, err := p.b.codec.encode(value)
	if err != nil {
		return failedFuture(err)
	}

	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.b.issue(ctx, p.inst, MsgPropertySet, property, []Arg{wire}, dependencies([]any{value}))
}

// Share adds a holder and returns a proxy for it. The new holder must be
// released independently.
func (p *Proxy) Share() (*Proxy, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if p.inst.state == Released {
		protocolViolations.Inc()
		return nil, errors.InvalidHandle(uint32(p.inst.h), "share")
	}
	if _, err := p.b.table.Retain(p.inst.h); err != nil {
		return nil, errors.InvalidHandle(uint32(p.inst.h), "share")
	}
	return &Proxy{b: p.b, inst: p.inst}, nil
}

// Release removes one holder. When the count reaches zero the handle moves to
// Released and the release call is sent once construction is acknowledged,
// its queued calls are sent, and no held call takes it as an argument. Releasing a handle whose count is already zero is
// a protocol violation and leaves it Released.
func (p *Proxy) Release(ctx context.Context) error {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()

	inst := p.inst
	if inst.state == Released {
		protocolViolations.Inc()
		return errors.ProtocolViolation(uint32(inst.h), "release on a handle whose count is already zero")
	}

	refs, ok := b.table.Refs(inst.h)
	if !ok {
		protocolViolations.Inc()
		return errors.InvalidHandle(uint32(inst.h), "release")
	}
	if refs > 1 {
		_, _, err := b.table.Release(inst.h)
		return err
	}

	inst.state = Released
	liveHandles.Dec()
	if !inst.acked || inst.pins > 0 || len(inst.queue) > 0 {
		inst.deferRelease = true
		return nil
	}
	if b.closed {
		b.free(inst)
		return nil
	}
	b.sendRelease(ctx, inst)
	return nil
}
