package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/handle"
	"github.com/wippyai/xplat/model"
)

// EndpointOptions configures the native side of a bridge.
type EndpointOptions struct {
	// Table stores native instances under script-assigned handles.
	// A new table is created when nil.
	Table *handle.Table
}

// Endpoint is the native side of the protocol. It owns a strong reference to
// every native instance until the script side releases it.
//
// Each handle gets its own worker so that responses for one handle are sent
// in the order its requests arrived. Different handles run concurrently.
// A handle passed as an argument is pinned from arrival until its request
// is done, and a release of that handle waits for the pin.
type Endpoint struct {
	transport  Transport
	host       Host
	table      *handle.Table
	workers    map[uint32]*worker
	byInstance map[any]uint32
	pins       map[uint32]int
	unpinned   *sync.Cond
	codec      codec
	wg         sync.WaitGroup
	mu         sync.Mutex
}

type nativeObject struct {
	value any
	class string
	// ready is false while the constructor runs.
	ready bool
}

// NewEndpoint creates the native side over a transport and a host.
func NewEndpoint(t Transport, host Host, opts EndpointOptions) *Endpoint {
	table := opts.Table
	if table == nil {
		table = handle.New()
	}
	e := &Endpoint{
		transport:  t,
		host:       host,
		table:      table,
		workers:    make(map[uint32]*worker),
		byInstance: make(map[any]uint32),
		pins:       make(map[uint32]int),
	}
	e.unpinned = sync.NewCond(&e.mu)
	e.codec = codec{
		handleOf:   e.handleOf,
		fromHandle: e.instanceOf,
	}
	return e
}

// Live returns the number of native instances held for the script side.
func (e *Endpoint) Live() int {
	return e.table.Len()
}

// Serve reads requests until ctx ends or the transport closes, then waits for
// in-flight work to finish.
func (e *Endpoint) Serve(ctx context.Context) error {
	defer func() {
		e.mu.Lock()
		for h, w := range e.workers {
			w.queue.close()
			delete(e.workers, h)
		}
		e.mu.Unlock()
		e.wg.Wait()
	}()

	for {
		msg, err := e.transport.Recv(ctx)
		if err != nil {
			if stderrors.Is(err, ErrTransportClosed) {
				return nil
			}
			return err
		}
		e.route(ctx, msg)
	}
}

// Fire sends an event to the script side. source is the handle of the firing
// instance, or zero. Payloads are values; no acknowledgment is expected.
func (e *Endpoint) Fire(ctx context.Context, source uint32, event string, payload *Value) error {
	msg := &Message{Type: MsgEvent, Handle: source, Member: event}
	if source != 0 {
		if v, ok := e.table.Get(handle.Handle(source)); ok {
			msg.Class = v.(*nativeObject).class
		}
	}
	if payload != nil {
		if payload.Kind() != model.ByValueOneWay {
			payload = NewDetachedValue(payload.Class(), model.ByValueOneWay, payload.fields)
		}
		a, err := e.codec.encode(payload)
		if err != nil {
			return err
		}
		msg.Result = &a
	}
	return e.transport.Send(ctx, msg)
}

func (e *Endpoint) route(ctx context.Context, msg *Message) {
	switch msg.Type {
	case MsgConstruct, MsgCall, MsgPropertyGet, MsgPropertySet, MsgRelease:
	default:
		Logger().Warn("unexpected message on native side", zap.Stringer("type", msg.Type))
		return
	}

	// A handle id may be reused by the script side as soon as it sends a
	// release, so a construct can arrive while the previous instance is still
	// being released. Routing both through the same worker keeps them ordered.
	e.mu.Lock()
	for _, h := range handles(msg.Args) {
		e.pins[h]++
	}
	w, ok := e.workers[msg.Handle]
	if !ok {
		w = &worker{queue: newMsgQueue()}
		e.workers[msg.Handle] = w
		e.wg.Add(1)
		go e.work(ctx, msg.Handle, w)
	}
	w.queue.push(msg)
	e.mu.Unlock()
}

func (e *Endpoint) work(ctx context.Context, h uint32, w *worker) {
	defer e.wg.Done()
	for {
		msg, ok := w.queue.pop()
		if !ok {
			return
		}
		e.handle(ctx, msg)

		e.mu.Lock()
		e.unpin(msg)
		if w.queue.empty() && !e.table.Has(handle.Handle(h)) {
			if e.workers[h] == w {
				delete(e.workers, h)
			}
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

// handle runs one request and sends its response.
func (e *Endpoint) handle(ctx context.Context, msg *Message) {
	typ := responseType(msg.Type)
	args, err := e.codec.decodeAll(msg.Args)
	if err != nil {
		e.reply(ctx, msg, typ, nil, err)
		return
	}

	if msg.Type == MsgConstruct {
		// The id is reserved first so that an id the table refuses never
		// reaches native code.
		h := handle.Handle(msg.Handle)
		if err := e.table.Adopt(h, msg.Class, &nativeObject{class: msg.Class}); err != nil {
			detail := err.Error()
			if stderrors.Is(err, handle.ErrInUse) {
				detail = "constructor call for a live handle"
			}
			e.reply(ctx, msg, typ, nil, errors.ProtocolViolation(msg.Handle, detail))
			return
		}
		v, err := guard(func() (any, error) { return e.host.Construct(ctx, msg.Class, args) })
		if err != nil {
			e.table.Release(h)
			e.reply(ctx, msg, typ, nil, err)
			return
		}
		e.table.Replace(h, &nativeObject{value: v, class: msg.Class, ready: true})
		e.remember(v, msg.Handle)
		e.reply(ctx, msg, typ, nil, nil)
		return
	}

	obj, ok := e.object(msg.Handle)
	if !ok {
		member := msg.Member
		if msg.Type == MsgRelease {
			member = "release"
		}
		e.reply(ctx, msg, typ, nil, errors.InvalidHandle(msg.Handle, member))
		return
	}

	var result any
	switch msg.Type {
	case MsgRelease:
		e.mu.Lock()
		for e.pins[msg.Handle] > 0 {
			e.unpinned.Wait()
		}
		e.mu.Unlock()
		if _, err := guard(func() (any, error) { return nil, e.host.Release(ctx, obj.value, obj.class) }); err != nil {
			Logger().Warn("native release failed", zap.Uint32("handle", msg.Handle), zap.Error(err))
		}
		e.forget(obj.value)
		e.table.Release(handle.Handle(msg.Handle))
	case MsgCall:
		result, err = guard(func() (any, error) { return e.host.Invoke(ctx, obj.value, obj.class, msg.Member, args) })
	case MsgPropertyGet:
		result, err = guard(func() (any, error) { return e.host.GetProperty(ctx, obj.value, obj.class, msg.Member) })
	case MsgPropertySet:
		var value any
		if len(args) > 0 {
			value = args[0]
		}
		_, err = guard(func() (any, error) { return nil, e.host.SetProperty(ctx, obj.value, obj.class, msg.Member, value) })
	}
	e.reply(ctx, msg, typ, result, err)
}

func (e *Endpoint) reply(ctx context.Context, req *Message, typ MessageType, result any, err error) {
	resp := &Message{Type: typ, Seq: req.Seq, Handle: req.Handle}
	if err == nil && result != nil {
		a, encErr := e.codec.encode(result)
		if encErr != nil {
			err = encErr
		} else {
			resp.Result = &a
		}
	}
	if err != nil {
		resp.Error, resp.Code, resp.Culprit = failureOf(err)
	}
	if sendErr := e.transport.Send(ctx, resp); sendErr != nil {
		Logger().Warn("reply not sent", zap.Stringer("type", typ), zap.Uint64("seq", req.Seq), zap.Error(sendErr))
	}
}

func (e *Endpoint) object(h uint32) (*nativeObject, bool) {
	v, ok := e.table.Get(handle.Handle(h))
	if !ok {
		return nil, false
	}
	obj := v.(*nativeObject)
	return obj, obj.ready
}

// unpin drops the pins route took for msg. Callers hold e.mu.
func (e *Endpoint) unpin(msg *Message) {
	hs := handles(msg.Args)
	for _, h := range hs {
		if e.pins[h]--; e.pins[h] <= 0 {
			delete(e.pins, h)
		}
	}
	if len(hs) > 0 {
		e.unpinned.Broadcast()
	}
}

func (e *Endpoint) instanceOf(h uint32) (any, error) {
	obj, ok := e.object(h)
	if !ok {
		return nil, errors.InvalidHandle(h, "")
	}
	return obj.value, nil
}

func (e *Endpoint) handleOf(v any) (uint32, bool) {
	if !isComparable(v) {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.byInstance[v]
	return h, ok
}

func (e *Endpoint) remember(v any, h uint32) {
	if !isComparable(v) {
		return
	}
	e.mu.Lock()
	e.byInstance[v] = h
	e.mu.Unlock()
}

func (e *Endpoint) forget(v any) {
	if !isComparable(v) {
		return
	}
	e.mu.Lock()
	delete(e.byInstance, v)
	e.mu.Unlock()
}

func isComparable(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Comparable()
}

func responseType(t MessageType) MessageType {
	switch t {
	case MsgConstruct:
		return MsgConstructAck
	case MsgCall:
		return MsgCallResult
	case MsgRelease:
		return MsgReleaseAck
	}
	return MsgPropertyResult
}

// failureOf reduces err to the text, kind and offending handle sent over the wire.
func failureOf(err error) (text, code string, culprit uint32) {
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e.Kind == errors.KindInvalidHandle || e.Kind == errors.KindProtocolViolation {
			culprit, _ = e.Value.(uint32)
			return e.Error(), string(errors.KindInvalidHandle), culprit
		}
	}
	return err.Error(), string(errors.KindNativeFailure), 0
}

// guard converts a panic in native code into a failure.
func guard(fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("native panic: %v", r)
		}
	}()
	return fn()
}

type worker struct {
	queue *msgQueue
}

// msgQueue is an unbounded per-handle FIFO.
type msgQueue struct {
	notify chan struct{}
	items  []*Message
	mu     sync.Mutex
	closed bool
}

func newMsgQueue() *msgQueue {
	return &msgQueue{notify: make(chan struct{}, 1)}
}

func (q *msgQueue) push(m *Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *msgQueue) pop() (*Message, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			m := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return m, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.notify
	}
}

func (q *msgQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

func (q *msgQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
