package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/handle"
	"github.com/wippyai/xplat/model"
)

// Options configures the script side of a bridge.
type Options struct {
	// Table stores live instances. A new table is created when nil.
	Table *handle.Table
}

// Event is a native event delivered to script handlers.
type Event struct {
	Payload *Value
	Name    string
	Class   string
	Source  uint32
}

// Bridge is the script side of the protocol. Every call on a by-reference
// object crosses the bridge asynchronously and returns a Future. Calls made
// before construction is acknowledged are queued and sent in issue order, as
// are calls that take a still-constructing proxy as an argument.
//
// Run must be running for responses to be delivered. Bridge is safe for
// concurrent use.
type Bridge struct {
	transport  Transport
	model      *model.ApiModel
	table      *handle.Table
	pending    map[uint64]*call
	constructs map[uint64]*instance
	handlers   map[string][]func(Event)
	codec      codec
	seq        uint64
	mu         sync.Mutex
	closed     bool
}

// New creates the script side over a transport and a linked model.
func New(t Transport, m *model.ApiModel, opts Options) *Bridge {
	table := opts.Table
	if table == nil {
		table = handle.New()
	}
	b := &Bridge{
		transport:  t,
		model:      m,
		table:      table,
		pending:    make(map[uint64]*call),
		constructs: make(map[uint64]*instance),
		handlers:   make(map[string][]func(Event)),
	}
	b.codec = codec{
		handleOf:   proxyHandle,
		fromHandle: b.proxyFor,
		value:      b.valueFor,
	}
	return b
}

// Table returns the handle table holding live instances.
func (b *Bridge) Table() *handle.Table {
	return b.table
}

// Construct creates a native instance of a by-reference class. It returns as
// soon as the constructor call is sent, or held behind the construction of a
// proxy argument; the proxy starts in Constructing with one holder.
func (b *Bridge) Construct(ctx context.Context, class string, args ...any) (*Proxy, error) {
	c := b.model.Class(class)
	if c == nil {
		return nil, errors.NotFound(errors.PhaseBridge, "class", class)
	}
	if c.Kind != model.ByReference {
		return nil, errors.New(errors.PhaseBridge, errors.KindUnsupported).
			Path(class).
			Detail("%s classes are not constructed across the bridge; use NewValue", c.Kind).
			Build()
	}
	if c.Member(model.Constructor, model.ConstructorName, false, len(args)) == nil {
		return nil, errors.NotFound(errors.PhaseBridge, "constructor", fmt.Sprintf("%s.new/%d", class, len(args)))
	}
	wire, err := b.codec.encodeAll(args)
	if err != nil {
		return nil, err
	}
	deps := dependencies(args)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errClosed()
	}
	if err := checkArgs(deps, class+".new"); err != nil {
		return nil, err
	}

	inst := &instance{class: c, state: Constructing}
	h, err := b.table.Create(class, inst)
	if err != nil {
		return nil, fmt.Errorf("bridge: construct %s: %w", class, err)
	}
	inst.h = h

	b.seq++
	ctor := &call{
		future: newFuture(),
		member: class + ".new",
		deps:   deps,
		msg:    &Message{Type: MsgConstruct, Seq: b.seq, Handle: uint32(h), Class: class, Args: wire},
	}
	if waiting(ctor) {
		b.hold(inst, ctor)
	} else if err := b.sendConstruct(ctx, inst, ctor); err != nil {
		b.table.Release(h)
		return nil, fmt.Errorf("bridge: construct %s: %w", class, err)
	}
	liveHandles.Inc()
	return &Proxy{b: b, inst: inst}, nil
}

// NewValue creates a value-two-way object on the script side.
// Value-one-way objects are constructed by native code only.
func (b *Bridge) NewValue(class string, fields map[string]any) (*Value, error) {
	c := b.model.Class(class)
	if c == nil {
		return nil, errors.NotFound(errors.PhaseBridge, "class", class)
	}
	if c.Kind != model.ByValueTwoWay {
		detail := "by-reference classes are created with Construct"
		if c.Kind == model.ByValueOneWay {
			detail = "value-one-way objects are constructed by native code only"
		}
		return nil, errors.New(errors.PhaseBridge, errors.KindUnsupported).Path(class).Detail("%s", detail).Build()
	}
	for name := range fields {
		if c.Property(name) == nil {
			return nil, errors.NotFound(errors.PhaseBridge, "property", class+"."+name)
		}
	}
	return newValue(c, fields), nil
}

// OnEvent registers fn for an event name. Name is either the bare event name
// ("Clicked") or qualified with its class ("Contoso.Button.Clicked").
func (b *Bridge) OnEvent(name string, fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], fn)
}

// Run reads responses and events until ctx ends or the transport closes.
// Outstanding calls fail with a closed error when Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		msg, err := b.transport.Recv(ctx)
		if err != nil {
			b.shutdown()
			if stderrors.Is(err, ErrTransportClosed) {
				return nil
			}
			return err
		}
		b.dispatch(msg)
	}
}

// Close closes the transport. Run returns once the peer side is gone.
func (b *Bridge) Close() error {
	return b.transport.Close()
}

func (b *Bridge) dispatch(msg *Message) {
	switch msg.Type {
	case MsgConstructAck:
		b.onConstructAck(msg)
	case MsgCallResult, MsgPropertyResult, MsgReleaseAck:
		b.onResult(msg)
	case MsgEvent:
		b.onEvent(msg)
	default:
		Logger().Warn("unexpected message on script side", zap.Stringer("type", msg.Type))
	}
}

func (b *Bridge) onConstructAck(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inst, ok := b.constructs[msg.Seq]
	if !ok {
		Logger().Warn("constructor ack without request", zap.Uint64("seq", msg.Seq))
		return
	}
	delete(b.constructs, msg.Seq)
	ctx := context.Background()

	if msg.Failed() {
		callsTotal.WithLabelValues(MsgConstruct.String(), "failure").Inc()
		Logger().Debug("construct failed", zap.Uint32("handle", uint32(inst.h)), zap.String("error", msg.Error))
		b.failConstruct(ctx, inst, errors.NativeFailure(inst.class.FullName()+".new", msg.Error))
		return
	}

	callsTotal.WithLabelValues(MsgConstruct.String(), "ok").Inc()
	inst.acked = true
	if inst.state == Constructing {
		inst.state = Ready
	}
	b.drain(ctx, inst)
	waiters := inst.waiters
	inst.waiters = nil
	for _, w := range waiters {
		b.drain(ctx, w)
	}
	b.releaseIfIdle(ctx, inst)
}

// failConstruct moves inst to Released with err as its failure. Held calls on
// inst fail with err; held calls elsewhere that take inst as an argument fail
// with an invalid handle. Callers hold b.mu.
func (b *Bridge) failConstruct(ctx context.Context, inst *instance, err error) {
	inst.acked = true
	inst.failure = err
	if inst.state != Released {
		liveHandles.Dec()
	}
	inst.state = Released
	inst.deferRelease = false

	queued := inst.queue
	inst.queue = nil
	queuedCalls.Sub(float64(len(queued)))
	for _, c := range queued {
		c.future.resolve(nil, err)
		b.unpin(ctx, c)
	}
	b.free(inst)

	waiters := inst.waiters
	inst.waiters = nil
	for _, w := range waiters {
		b.drain(ctx, w)
	}
}

func (b *Bridge) onResult(msg *Message) {
	b.mu.Lock()
	c, ok := b.pending[msg.Seq]
	if ok {
		delete(b.pending, msg.Seq)
	}
	b.mu.Unlock()
	if !ok {
		Logger().Warn("response without request", zap.Stringer("type", msg.Type), zap.Uint64("seq", msg.Seq))
		return
	}

	callDuration.WithLabelValues(c.msg.Type.String()).Observe(time.Since(c.start).Seconds())
	if msg.Failed() {
		callsTotal.WithLabelValues(c.msg.Type.String(), "failure").Inc()
		if msg.Code == string(errors.KindInvalidHandle) {
			protocolViolations.Inc()
			if msg.Culprit != 0 && msg.Culprit != msg.Handle {
				c.future.resolve(nil, argumentGone(msg.Culprit, c.member, nil))
				return
			}
			c.future.resolve(nil, errors.InvalidHandle(msg.Handle, c.member))
			return
		}
		c.future.resolve(nil, errors.NativeFailure(c.member, msg.Error))
		return
	}
	callsTotal.WithLabelValues(c.msg.Type.String(), "ok").Inc()

	var result any
	if msg.Result != nil {
		v, err := b.codec.decode(*msg.Result)
		if err != nil {
			c.future.resolve(nil, err)
			return
		}
		result = v
	}
	c.future.resolve(result, nil)
}

func (b *Bridge) onEvent(msg *Message) {
	var payload *Value
	if msg.Result != nil {
		v, err := b.codec.decode(*msg.Result)
		if err != nil {
			Logger().Warn("undecodable event payload", zap.String("event", msg.Member), zap.Error(err))
			return
		}
		payload, _ = v.(*Value)
	}

	ev := Event{Name: msg.Member, Class: msg.Class, Source: msg.Handle, Payload: payload}
	b.mu.Lock()
	fns := append([]func(Event){}, b.handlers[msg.Member]...)
	if msg.Class != "" {
		fns = append(fns, b.handlers[msg.Class+"."+msg.Member]...)
	}
	b.mu.Unlock()

	eventsTotal.Inc()
	for _, fn := range fns {
		fn(ev)
	}
}

// issue queues or sends a request for inst. deps are the instances passed
// in args. Callers hold b.mu.
func (b *Bridge) issue(ctx context.Context, inst *instance, typ MessageType, member string, args []Arg, deps []*instance) *Future {
	if b.closed {
		return failedFuture(errClosed())
	}
	full := inst.class.FullName() + "." + member
	if inst.state == Released {
		protocolViolations.Inc()
		err := errors.InvalidHandle(uint32(inst.h), full)
		if inst.failure != nil {
			err.Detail = fmt.Sprintf("handle %d failed to construct", inst.h)
			err.Cause = inst.failure
		}
		return failedFuture(err)
	}
	if err := checkArgs(deps, full); err != nil {
		return failedFuture(err)
	}

	b.seq++
	c := &call{
		future: newFuture(),
		member: full,
		deps:   deps,
		msg: &Message{
			Type:   typ,
			Seq:    b.seq,
			Handle: uint32(inst.h),
			Class:  inst.class.FullName(),
			Member: member,
			Args:   args,
		},
	}
	if !inst.acked || len(inst.queue) > 0 || waiting(c) {
		b.hold(inst, c)
		return c.future
	}
	b.send(ctx, c)
	return c.future
}

// hold appends c to the queue of inst and pins its arguments until it is
// sent. Callers hold b.mu.
func (b *Bridge) hold(inst *instance, c *call) {
	inst.queue = append(inst.queue, c)
	queuedCalls.Inc()
	for _, d := range c.deps {
		d.pins++
		if !d.acked {
			d.waiters = append(d.waiters, inst)
		}
	}
}

// drain sends held calls of inst in order until one still waits on a
// construction. A held constructor goes out before inst is acknowledged;
// other calls wait for the acknowledgement. Callers hold b.mu.
func (b *Bridge) drain(ctx context.Context, inst *instance) {
	for len(inst.queue) > 0 {
		c := inst.queue[0]
		ctor := c.msg.Type == MsgConstruct
		if !ctor && !inst.acked {
			return
		}
		if d := failedArg(c); d != nil {
			err := argumentGone(uint32(d.h), c.member, d.failure)
			if ctor {
				b.failConstruct(ctx, inst, err)
				return
			}
			c.future.resolve(nil, err)
		} else if waiting(c) {
			return
		} else if ctor {
			if err := b.sendConstruct(ctx, inst, c); err != nil {
				b.failConstruct(ctx, inst, fmt.Errorf("bridge: construct %s: %w", inst.class.FullName(), err))
				return
			}
		} else {
			b.send(ctx, c)
		}
		inst.queue = inst.queue[1:]
		queuedCalls.Dec()
		b.unpin(ctx, c)
	}
	b.releaseIfIdle(ctx, inst)
}

// unpin drops the pins c holds on its arguments. Callers hold b.mu.
func (b *Bridge) unpin(ctx context.Context, c *call) {
	for _, d := range c.deps {
		d.pins--
		b.releaseIfIdle(ctx, d)
	}
}

// releaseIfIdle sends a deferred release once nothing on the script side
// still needs the native object. Callers hold b.mu.
func (b *Bridge) releaseIfIdle(ctx context.Context, inst *instance) {
	if !inst.deferRelease || !inst.acked || inst.pins > 0 || len(inst.queue) > 0 {
		return
	}
	inst.deferRelease = false
	if b.closed {
		b.free(inst)
		return
	}
	b.sendRelease(ctx, inst)
}

// sendConstruct transmits a constructor call. Callers hold b.mu.
func (b *Bridge) sendConstruct(ctx context.Context, inst *instance, c *call) error {
	c.start = time.Now()
	if err := b.transport.Send(ctx, c.msg); err != nil {
		return err
	}
	b.constructs[c.msg.Seq] = inst
	Logger().Debug("construct sent", zap.String("class", inst.class.FullName()), zap.Uint32("handle", uint32(inst.h)))
	return nil
}

// send transmits a request and registers it for its response. Callers hold b.mu.
func (b *Bridge) send(ctx context.Context, c *call) {
	c.start = time.Now()
	b.pending[c.msg.Seq] = c
	if err := b.transport.Send(ctx, c.msg); err != nil {
		delete(b.pending, c.msg.Seq)
		c.future.resolve(nil, fmt.Errorf("bridge: send %s: %w", c.msg.Type, err))
	}
}

// sendRelease frees the table entry and tells the native side. Callers hold b.mu.
func (b *Bridge) sendRelease(ctx context.Context, inst *instance) {
	b.free(inst)
	b.seq++
	c := &call{
		future: newFuture(),
		member: inst.class.FullName() + ".release",
		msg:    &Message{Type: MsgRelease, Seq: b.seq, Handle: uint32(inst.h), Class: inst.class.FullName()},
	}
	b.send(ctx, c)
	Logger().Debug("release sent", zap.Uint32("handle", uint32(inst.h)))
}

// free drops the table entry for inst regardless of its count. Callers hold b.mu.
func (b *Bridge) free(inst *instance) {
	if inst.freed {
		return
	}
	inst.freed = true
	for {
		_, dropped, err := b.table.Release(inst.h)
		if dropped || err != nil {
			return
		}
	}
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	err := errClosed()
	for seq, c := range b.pending {
		c.future.resolve(nil, err)
		delete(b.pending, seq)
	}
	for seq := range b.constructs {
		delete(b.constructs, seq)
	}
	b.table.Each(func(_ handle.Handle, _ string, v any) bool {
		inst, ok := v.(*instance)
		if !ok || len(inst.queue) == 0 {
			return true
		}
		for _, c := range inst.queue {
			c.future.resolve(nil, err)
		}
		queuedCalls.Sub(float64(len(inst.queue)))
		inst.queue = nil
		return true
	})
}

func (b *Bridge) proxyFor(h uint32) (any, error) {
	v, ok := b.table.Get(handle.Handle(h))
	if !ok {
		return nil, errors.InvalidHandle(h, "")
	}
	inst := v.(*instance)
	if inst.state == Released {
		return nil, errors.InvalidHandle(h, "")
	}
	if _, err := b.table.Retain(inst.h); err != nil {
		return nil, errors.InvalidHandle(h, "")
	}
	return &Proxy{b: b, inst: inst}, nil
}

func (b *Bridge) valueFor(class string, kind model.MarshalKind, fields map[string]any) *Value {
	if c := b.model.Class(class); c != nil {
		return newValue(c, fields)
	}
	return NewDetachedValue(class, kind, fields)
}

func proxyHandle(v any) (uint32, bool) {
	if p, ok := v.(*Proxy); ok {
		return uint32(p.inst.h), true
	}
	return 0, false
}

// dependencies collects the instances of every proxy in vs, including those
// nested in values and lists.
func dependencies(vs []any) []*instance {
	var out []*instance
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case *Proxy:
			if x != nil {
				out = append(out, x.inst)
			}
		case *Value:
			if x != nil {
				for _, f := range x.fields {
					walk(f)
				}
			}
		case []any:
			for _, it := range x {
				walk(it)
			}
		}
	}
	for _, v := range vs {
		walk(v)
	}
	return out
}

// checkArgs rejects a call that passes a released proxy. Callers hold b.mu.
func checkArgs(deps []*instance, member string) error {
	for _, d := range deps {
		if d.state == Released {
			protocolViolations.Inc()
			return argumentGone(uint32(d.h), member, d.failure)
		}
	}
	return nil
}

// waiting reports whether an argument of c is still constructing.
func waiting(c *call) bool {
	for _, d := range c.deps {
		if !d.acked {
			return true
		}
	}
	return false
}

func failedArg(c *call) *instance {
	for _, d := range c.deps {
		if d.failure != nil {
			return d
		}
	}
	return nil
}

func argumentGone(h uint32, member string, cause error) *errors.Error {
	err := errors.InvalidHandle(h, member)
	err.Detail = fmt.Sprintf("argument handle %d is not live", h)
	err.Cause = cause
	return err
}

func errClosed() error {
	return errors.New(errors.PhaseBridge, errors.KindClosed).Detail("bridge is closed").Build()
}
