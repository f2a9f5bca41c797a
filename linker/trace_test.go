package linker

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/descriptor"
)

// The global provider delegates once, so this is the only test that installs one.
func TestLinkSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	android := &descriptor.Stream{Platform: xplat.Android, Types: []descriptor.TypeDecl{
		{NativeName: "com.contoso.Widget"},
	}}
	l := New(testMappings(t), Options{Platforms: []xplat.Platform{xplat.Android}})
	if _, err := l.Link(context.Background(), android); err != nil {
		t.Fatal(err)
	}

	spans := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range rec.Ended() {
		spans[s.Name()] = s
	}
	root, ok := spans["linker.Link"]
	if !ok {
		t.Fatalf("no linker.Link span among %d spans", len(spans))
	}
	for _, name := range []string{"linker.resolve", "linker.build", "linker.classify", "linker.detect"} {
		s, ok := spans[name]
		if !ok {
			t.Errorf("missing span %s", name)
			continue
		}
		if s.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Errorf("%s is not a child of linker.Link", name)
		}
	}

	var classes int64 = -1
	for _, kv := range root.Attributes() {
		if kv.Key == "classes" {
			classes = kv.Value.AsInt64()
		}
	}
	if classes != 1 {
		t.Errorf("classes attribute = %d, want 1", classes)
	}
}
