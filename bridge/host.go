package bridge

import (
	"context"
	"fmt"
	"sync"
)

// Host runs native code for an Endpoint. Returned errors are native failures:
// only their message text crosses the bridge.
//
// Calls for one instance are made sequentially in issue order; calls for
// different instances may run concurrently.
type Host interface {
	Construct(ctx context.Context, class string, args []any) (any, error)
	Invoke(ctx context.Context, self any, class, method string, args []any) (any, error)
	GetProperty(ctx context.Context, self any, class, name string) (any, error)
	SetProperty(ctx context.Context, self any, class, name string, value any) error
	Release(ctx context.Context, self any, class string) error
}

// FuncClass implements one native class with plain Go functions.
type FuncClass struct {
	New     func(ctx context.Context, args []any) (any, error)
	Methods map[string]func(ctx context.Context, self any, args []any) (any, error)
	Getters map[string]func(self any) (any, error)
	Setters map[string]func(self any, value any) error
	Drop    func(self any)
}

// FuncHost is a Host backed by registered FuncClass values.
type FuncHost struct {
	classes map[string]*FuncClass
	mu      sync.RWMutex
}

// NewFuncHost creates an empty host.
func NewFuncHost() *FuncHost {
	return &FuncHost{classes: make(map[string]*FuncClass)}
}

// Register adds or replaces the implementation of a class.
func (h *FuncHost) Register(class string, c FuncClass) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.classes[class] = &c
}

func (h *FuncHost) class(name string) (*FuncClass, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.classes[name]
	if !ok {
		return nil, fmt.Errorf("no native implementation for %s", name)
	}
	return c, nil
}

// Construct implements Host.
func (h *FuncHost) Construct(ctx context.Context, class string, args []any) (any, error) {
	c, err := h.class(class)
	if err != nil {
		return nil, err
	}
	if c.New == nil {
		return nil, fmt.Errorf("%s has no constructor", class)
	}
	return c.New(ctx, args)
}

// Invoke implements Host.
func (h *FuncHost) Invoke(ctx context.Context, self any, class, method string, args []any) (any, error) {
	c, err := h.class(class)
	if err != nil {
		return nil, err
	}
	fn, ok := c.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s has no method %s", class, method)
	}
	return fn(ctx, self, args)
}

// GetProperty implements Host.
func (h *FuncHost) GetProperty(_ context.Context, self any, class, name string) (any, error) {
	c, err := h.class(class)
	if err != nil {
		return nil, err
	}
	fn, ok := c.Getters[name]
	if !ok {
		return nil, fmt.Errorf("%s has no getter for %s", class, name)
	}
	return fn(self)
}

// SetProperty implements Host.
func (h *FuncHost) SetProperty(_ context.Context, self any, class, name string, value any) error {
	c, err := h.class(class)
	if err != nil {
		return err
	}
	fn, ok := c.Setters[name]
	if !ok {
		return fmt.Errorf("%s has no setter for %s", class, name)
	}
	return fn(self, value)
}

// Release implements Host.
func (h *FuncHost) Release(_ context.Context, self any, class string) error {
	c, err := h.class(class)
	if err != nil {
		return err
	}
	if c.Drop != nil {
		c.Drop(self)
	}
	return nil
}
