package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/xplat/config"
	"github.com/wippyai/xplat/detect"
	"github.com/wippyai/xplat/report"
)

const androidStream = `{"platform": "android", "types": [
  {"native_name": "com.contoso.Widget", "members": [{"kind": "constructor"}]}
]}`

const iosStream = `{"platform": "ios", "types": [
  {"native_name": "CTSWidget", "members": [{"kind": "constructor"}]}
]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLinkOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "android.json", androidStream)
	writeFile(t, dir, "ios.json", iosStream)
	manifest := writeFile(t, dir, "xplat.toml", `
[link]
platforms = ["android", "ios"]
descriptors = ["android.json", "ios.json"]

[[namespaces]]
platform = "android"
key = "com.contoso"
namespace = "Contoso"

[[namespaces]]
platform = "ios"
key = "CTS"
namespace = "Contoso"
`)

	cfg, err := config.Load(manifest)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := linkOnce(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Generatable {
		t.Fatalf("report blocked: %v", rep.Conflicts)
	}
	if rep.Classes != 1 || rep.Manifest != manifest {
		t.Errorf("classes = %d, manifest = %q", rep.Classes, rep.Manifest)
	}
	if exitCode(rep) != exitOK {
		t.Errorf("exitCode = %d, want %d", exitCode(rep), exitOK)
	}
}

func TestLinkOnceFoldsConfigErrorsIntoReport(t *testing.T) {
	cfg := config.Default()
	cfg.Namespaces = []config.NamespaceEntry{
		{Platform: "android", Key: "com.contoso", Namespace: "Contoso"},
		{Platform: "android", Key: "com.contoso", Namespace: "Other"},
	}

	rep, err := linkOnce(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Generatable {
		t.Fatal("ambiguous mapping should block generation")
	}
	if len(rep.Conflicts) != 1 || rep.Conflicts[0].Code != detect.CodeAmbiguousMapping {
		t.Errorf("conflicts = %v", rep.Conflicts)
	}
	if exitCode(rep) != exitBlocked {
		t.Errorf("exitCode = %d, want %d", exitCode(rep), exitBlocked)
	}
}

func TestUnreadableDescriptorIsOperationalFailure(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "xplat.toml", `
[link]
descriptors = ["missing.json"]
`)

	cfg, err := config.Load(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := linkOnce(context.Background(), cfg, zap.NewNop()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("linkOnce error = %v, want a missing file", err)
	}

	code, err := run(options{manifest: manifest, format: "json"})
	if err == nil || code != exitFailure {
		t.Errorf("run = %d, %v; want exit %d with an error", code, err, exitFailure)
	}
}

func TestRecordPrintsDiff(t *testing.T) {
	ctx := context.Background()
	store, err := report.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	first := report.Report{Generatable: true}
	second := report.Report{Conflicts: []detect.Conflict{
		{Severity: detect.Error, Code: detect.CodeShapeMismatch, Subject: "Contoso.Widget.Resize", Description: "differs"},
	}}

	var out bytes.Buffer
	if err := record(ctx, &out, store, first); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("first run printed %q", out.String())
	}
	if err := record(ctx, &out, store, second); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "1 new, 0 resolved") {
		t.Errorf("diff output = %q", out.String())
	}

	out.Reset()
	if err := printHistory(ctx, &out, store, 5); err != nil {
		t.Fatal(err)
	}
	if strings.Count(out.String(), "\n") != 2 {
		t.Errorf("history = %q", out.String())
	}
}
