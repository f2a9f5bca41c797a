package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/detect"
	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/linker"
)

func sampleReport() Report {
	return Report{
		Generated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Manifest:  "xplat.toml",
		Platforms: []xplat.Platform{xplat.Android, xplat.IOS},
		Kinds:     map[string]int{"reference": 2, "value-two-way": 1},
		Classes:   3,
		Conflicts: []detect.Conflict{
			{Severity: detect.Error, Code: detect.CodeMarshalKindMismatch, Subject: "Contoso.Point",
				Platforms: []xplat.Platform{xplat.Android, xplat.IOS}, Description: "android says reference | ios says value-two-way"},
			{Severity: detect.Warning, Code: detect.CodePartialClass, Subject: "Contoso.Widget",
				Platforms: []xplat.Platform{xplat.IOS}, Description: "not defined on windows"},
		},
		Excluded: []linker.TypeRef{{Platform: xplat.Android, NativeName: "com.contoso.internal.Helper", Rule: "**.internal.*"}},
		Unmapped: []linker.TypeRef{{Platform: xplat.IOS, NativeName: "ZZThing"}},
		Errors:   1,
		Warnings: 1,
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport(), TextOptions{Verbose: true}))
	out := buf.String()

	assert.Contains(t, out, "linked android, ios: 3 classes, 1 error, 1 warning")
	assert.Contains(t, out, "kinds: reference 2, value-two-way 1")
	assert.Contains(t, out, "marshal_kind_mismatch Contoso.Point [android, ios]")
	assert.Contains(t, out, "excluded android com.contoso.internal.Helper (**.internal.*)")
	assert.Contains(t, out, "unmapped ios ZZThing")
	assert.True(t, strings.HasSuffix(out, "generation blocked\n"))

	// errors are listed before warnings
	assert.Less(t, strings.Index(out, "Contoso.Point"), strings.Index(out, "Contoso.Widget"))
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, sampleReport()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Link report\n"))
	assert.Contains(t, out, "- Generation: blocked")
	assert.Contains(t, out, "| error | `marshal_kind_mismatch` | `Contoso.Point` | android, ios |")
	assert.Contains(t, out, `reference \| ios`)
	assert.Contains(t, out, "- `ZZThing` on ios, no namespace mapping")
}

func TestJSONRoundTripIsIdempotent(t *testing.T) {
	var first bytes.Buffer
	require.NoError(t, WriteJSON(&first, sampleReport()))

	r, err := ReadJSON(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), r)

	var second bytes.Buffer
	require.NoError(t, WriteJSON(&second, r))
	assert.Equal(t, first.String(), second.String())

	_, err = ReadJSON(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, "pdf", sampleReport(), TextOptions{}))
	require.NoError(t, Write(&buf, "md", sampleReport(), TextOptions{}))
	assert.Contains(t, buf.String(), "# Link report")
}

func TestFromResult(t *testing.T) {
	set, err := linker.NewMappingSet([]linker.NamespaceMapping{
		{Platform: xplat.Android, Key: "com.contoso", Namespace: "Contoso"},
	}, linker.MappingOptions{})
	require.NoError(t, err)

	l := linker.New(set, linker.Options{Platforms: []xplat.Platform{xplat.Android, xplat.IOS}})
	res, err := l.Link(context.Background(),
		&descriptor.Stream{Platform: xplat.Android, Types: []descriptor.TypeDecl{{NativeName: "com.contoso.Widget"}}},
		&descriptor.Stream{Platform: xplat.IOS, Types: []descriptor.TypeDecl{{NativeName: "ZZWidget"}}},
	)
	require.NoError(t, err)

	r := FromResult(res)
	assert.Equal(t, 1, r.Classes)
	assert.Equal(t, 1, r.Kinds["reference"])
	assert.Len(t, r.Unmapped, 1)
	assert.Equal(t, res.Generatable(), r.Generatable)
	assert.Equal(t, len(res.Conflicts), r.Errors+r.Warnings)
}

func TestFromConfigError(t *testing.T) {
	cfgErrs := &errors.ConfigErrors{}
	cfgErrs.Add(errors.AmbiguousMapping("android", "com.contoso", []string{"A", "B"}))
	r := FromConfigError(cfgErrs)

	assert.False(t, r.Generatable)
	assert.Equal(t, 1, r.Errors)
	require.Len(t, r.Conflicts, 1)
	assert.Equal(t, detect.CodeAmbiguousMapping, r.Conflicts[0].Code)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	defer s.Close()

	first := sampleReport()
	run1, err := s.Save(ctx, first)
	require.NoError(t, err)
	assert.NotEmpty(t, run1.ID)

	second := sampleReport()
	second.Generated = first.Generated.Add(time.Minute)
	second.Conflicts = []detect.Conflict{
		first.Conflicts[1],
		{Severity: detect.Warning, Code: detect.CodePartialMember, Subject: "Contoso.Widget.Name",
			Platforms: []xplat.Platform{xplat.Android}, Description: "not defined on ios"},
	}
	second.Errors, second.Warnings = detect.Count(second.Conflicts)
	second.Generatable = true
	run2, err := s.Save(ctx, second)
	require.NoError(t, err)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run2.ID, runs[0].ID, "newest first")
	assert.True(t, runs[0].Generatable)
	assert.Equal(t, []xplat.Platform{xplat.Android, xplat.IOS}, runs[1].Platforms)
	assert.Equal(t, first.Generated, runs[1].Time)

	limited, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	conflicts, err := s.Conflicts(ctx, run1.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Conflicts, conflicts)

	_, err = s.Conflicts(ctx, "missing")
	assert.Error(t, err)

	d, err := s.Diff(ctx, run1.ID, run2.ID)
	require.NoError(t, err)
	require.Len(t, d.Added, 1)
	require.Len(t, d.Resolved, 1)
	assert.Equal(t, detect.CodePartialMember, d.Added[0].Code)
	assert.Equal(t, detect.CodeMarshalKindMismatch, d.Resolved[0].Code)
}

func TestOpenRejectsDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
	_, err = Open("  ")
	assert.Error(t, err)
}
