package bridge

import (
	"context"
	"testing"
)

// counterWasm exports Counter#new, returning instance 7, and Counter#add,
// which returns the sum of its two i32 parameters.
var counterWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// types: () -> i32, (i32, i32) -> i32
	0x01, 0x0b, 0x02, 0x60, 0x00, 0x01, 0x7f, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// functions
	0x03, 0x03, 0x02, 0x00, 0x01,
	// exports
	0x07, 0x1d, 0x02,
	0x0b, 'C', 'o', 'u', 'n', 't', 'e', 'r', '#', 'n', 'e', 'w', 0x00, 0x00,
	0x0b, 'C', 'o', 'u', 'n', 't', 'e', 'r', '#', 'a', 'd', 'd', 0x00, 0x01,
	// code
	0x0a, 0x0e, 0x02,
	0x04, 0x00, 0x41, 0x07, 0x0b,
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func TestWasmHost(t *testing.T) {
	ctx := context.Background()
	h, err := NewWasmHost(ctx, counterWasm, nil)
	if err != nil {
		t.Fatalf("NewWasmHost failed: %v", err)
	}
	defer h.Close(ctx)

	self, err := h.Construct(ctx, "Demo.Counter", nil)
	if err != nil {
		t.Fatalf("Construct failed: %v", err)
	}
	if obj := self.(*wasmObject); obj.id != 7 {
		t.Errorf("instance id = %d, want 7", obj.id)
	}

	v, err := h.Invoke(ctx, self, "Demo.Counter", "add", []any{int64(5)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if v != int64(12) {
		t.Errorf("add = %v (%T), want 12", v, v)
	}

	if _, err := h.Invoke(ctx, self, "Demo.Counter", "add", []any{"five"}); err == nil {
		t.Error("expected error for string argument to i32 parameter")
	}
	if _, err := h.Invoke(ctx, self, "Demo.Counter", "sub", []any{int64(1)}); err == nil {
		t.Error("expected error for missing export")
	}
	if _, err := h.GetProperty(ctx, self, "Demo.Counter", "Value"); err == nil {
		t.Error("expected error for missing getter")
	}
	// no drop export
	if err := h.Release(ctx, self, "Demo.Counter"); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

func TestWasmHostRejectsInvalidModule(t *testing.T) {
	if _, err := NewWasmHost(context.Background(), []byte("not wasm"), nil); err == nil {
		t.Error("expected error for invalid module")
	}
}

func TestWasmHostBehindEndpoint(t *testing.T) {
	h, err := NewWasmHost(context.Background(), counterWasm, &WasmHostConfig{MemoryLimitPages: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close(context.Background())

	script, native := Pipe()
	defer script.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewEndpoint(native, h, EndpointOptions{})
	go e.Serve(ctx)

	msgs := []*Message{
		{Type: MsgConstruct, Seq: 1, Handle: 1, Class: "Demo.Counter"},
		{Type: MsgCall, Seq: 2, Handle: 1, Member: "add", Args: []Arg{{Kind: ArgPrimitive, Prim: int64(30)}}},
		{Type: MsgRelease, Seq: 3, Handle: 1},
	}
	for _, m := range msgs {
		if err := script.Send(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	for want := uint64(1); want <= 3; want++ {
		resp, err := script.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Seq != want || resp.Failed() {
			t.Fatalf("response %d = %+v", want, resp)
		}
		if want == 2 && (resp.Result == nil || normalize(resp.Result.Prim) != int64(37)) {
			t.Errorf("add result = %+v, want 37", resp.Result)
		}
	}
	if e.Live() != 0 {
		t.Errorf("Live() = %d, want 0", e.Live())
	}
}
