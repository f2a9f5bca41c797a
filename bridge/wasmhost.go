package bridge

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// WasmHostConfig configures a WasmHost.
type WasmHostConfig struct {
	// MemoryLimitPages caps guest memory in 64KiB pages. Zero keeps the
	// runtime default.
	MemoryLimitPages uint32
}

// WasmHost runs native classes exported from a core WebAssembly module.
// A class Counter is implemented by the exports:
//
//	Counter#new          constructor, returns the instance id
//	Counter#<method>     instance id first, then arguments
//	Counter#get-<name>   property getter
//	Counter#set-<name>   property setter
//	Counter#drop         optional, called on release
//
// Instance ids are i32 or i64 values chosen by the guest.
type WasmHost struct {
	runtime wazero.Runtime
	module  api.Module
	// guest functions are not safe for concurrent calls
	mu sync.Mutex
}

type wasmObject struct {
	class string
	id    uint64
}

// NewWasmHost compiles and instantiates a module.
func NewWasmHost(ctx context.Context, wasm []byte, cfg *WasmHostConfig) (*WasmHost, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	mod, err := rt.Instantiate(ctx, wasm)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}
	Logger().Debug("wasm host ready", zap.Int("exports", len(mod.ExportedFunctionDefinitions())))
	return &WasmHost{runtime: rt, module: mod}, nil
}

// Close releases the runtime.
func (h *WasmHost) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// Construct implements Host.
func (h *WasmHost) Construct(ctx context.Context, class string, args []any) (any, error) {
	res, err := h.call(ctx, class, "new", nil, args)
	if err != nil {
		return nil, err
	}
	fn := h.module.ExportedFunction(exportName(class, "new"))
	if len(res) != 1 {
		return nil, fmt.Errorf("%s must return one instance id", fn.Definition().Name())
	}
	return &wasmObject{class: class, id: res[0]}, nil
}

// Invoke implements Host.
func (h *WasmHost) Invoke(ctx context.Context, self any, class, method string, args []any) (any, error) {
	res, err := h.call(ctx, class, method, self, args)
	if err != nil {
		return nil, err
	}
	return h.result(class, method, res)
}

// GetProperty implements Host.
func (h *WasmHost) GetProperty(ctx context.Context, self any, class, name string) (any, error) {
	res, err := h.call(ctx, class, "get-"+name, self, nil)
	if err != nil {
		return nil, err
	}
	return h.result(class, "get-"+name, res)
}

// SetProperty implements Host.
func (h *WasmHost) SetProperty(ctx context.Context, self any, class, name string, value any) error {
	_, err := h.call(ctx, class, "set-"+name, self, []any{value})
	return err
}

// Release implements Host. Classes without a drop export need no cleanup.
func (h *WasmHost) Release(ctx context.Context, self any, class string) error {
	if h.module.ExportedFunction(exportName(class, "drop")) == nil {
		return nil
	}
	_, err := h.call(ctx, class, "drop", self, nil)
	return err
}

func (h *WasmHost) call(ctx context.Context, class, member string, self any, args []any) ([]uint64, error) {
	name := exportName(class, member)
	fn := h.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("module does not export %s", name)
	}
	params := fn.Definition().ParamTypes()

	stack := make([]uint64, 0, len(params))
	if self != nil && len(params) == len(args)+1 {
		obj, ok := self.(*wasmObject)
		if !ok {
			return nil, fmt.Errorf("%s: instance is %T, not a wasm object", name, self)
		}
		stack = append(stack, obj.id)
		params = params[1:]
	}
	if len(params) != len(args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", name, len(params), len(args))
	}
	for i, a := range args {
		v, err := encodeWasm(params[i], a)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", name, i, err)
		}
		stack = append(stack, v)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return fn.Call(ctx, stack...)
}

func (h *WasmHost) result(class, member string, res []uint64) (any, error) {
	if len(res) == 0 {
		return nil, nil
	}
	types := h.module.ExportedFunction(exportName(class, member)).Definition().ResultTypes()
	return decodeWasm(types[0], res[0]), nil
}

// exportName maps a canonical class name to its export prefix.
func exportName(class, member string) string {
	if i := strings.LastIndexByte(class, '.'); i >= 0 {
		class = class[i+1:]
	}
	return class + "#" + member
}

func encodeWasm(t api.ValueType, v any) (uint64, error) {
	switch t {
	case api.ValueTypeI32, api.ValueTypeI64:
		n, ok := toInt64(v)
		if !ok {
			return 0, fmt.Errorf("expected integer, got %T", v)
		}
		if t == api.ValueTypeI32 {
			if n < math.MinInt32 || n > math.MaxUint32 {
				return 0, fmt.Errorf("%d overflows i32", n)
			}
			return api.EncodeI32(int32(n)), nil
		}
		return api.EncodeI64(n), nil
	case api.ValueTypeF32, api.ValueTypeF64:
		f, ok := toFloat64(v)
		if !ok {
			return 0, fmt.Errorf("expected number, got %T", v)
		}
		if t == api.ValueTypeF32 {
			return api.EncodeF32(float32(f)), nil
		}
		return api.EncodeF64(f), nil
	}
	return 0, fmt.Errorf("unsupported wasm type %s", api.ValueTypeName(t))
}

func decodeWasm(t api.ValueType, v uint64) any {
	switch t {
	case api.ValueTypeI32:
		return int64(api.DecodeI32(v))
	case api.ValueTypeF32:
		return float64(api.DecodeF32(v))
	case api.ValueTypeF64:
		return api.DecodeF64(v)
	}
	return int64(v)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case *wasmObject:
		return int64(x.id), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
