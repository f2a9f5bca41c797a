package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

const manifest = `
[link]
platforms = ["android", "ios"]
descriptors = ["api/android.json", "/abs/ios.json"]
infer_value_kinds = true

[platforms.ios]
match = "prefix"
prefix_lengths = [2, 3]

[[namespaces]]
platform = "android"
key = "com.contoso"
namespace = "Contoso"

[[namespaces]]
platform = "iOS"
key = " CTS "
namespace = "Contoso"

[[overrides]]
class = "Contoso.Point"
kind = "value-two-way"

[exclude]
types = ["**.internal.*"]

[report]
format = "MD"
store = "history.db"

[log]
level = "debug"
development = true

[watch]
debounce = "1s"
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xplat.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, manifest)
	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, []xplat.Platform{xplat.Android, xplat.IOS}, cfg.LinkPlatforms())
	assert.Equal(t, []string{filepath.Join(dir, "api/android.json"), "/abs/ios.json"}, cfg.Link.Descriptors)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.Report.Store)
	assert.Equal(t, FormatMarkdown, cfg.Report.Format)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.NotEmpty(t, cfg.Watch.Patterns)

	mappings := cfg.Mappings()
	require.Len(t, mappings, 2)
	assert.Equal(t, xplat.IOS, mappings[1].Platform)
	assert.Equal(t, "CTS", mappings[1].Key)

	opts := cfg.MappingOptions()
	assert.Equal(t, xplat.MatchPrefix, opts.Strategies[xplat.IOS])
	assert.Equal(t, []int{2, 3}, opts.PrefixLengths)

	assert.Equal(t, map[string]model.MarshalKind{"Contoso.Point": model.ByValueTwoWay}, cfg.MarshalOverrides())

	lo := cfg.LinkOptions()
	assert.True(t, lo.InferValueKinds)
	assert.Equal(t, []string{"**.internal.*"}, lo.Exclude)

	zc := cfg.ZapConfig()
	assert.Equal(t, zapcore.DebugLevel, zc.Level.Level())
	assert.True(t, zc.Development)

	l, err := cfg.Linker()
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)

	assert.Equal(t, xplat.DefaultPlatforms(), cfg.LinkPlatforms())
	assert.Equal(t, FormatText, cfg.Report.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultDebounce, cfg.Watch.Debounce)
	assert.Empty(t, cfg.Report.Store)
	assert.Equal(t, Default().Link.Platforms, cfg.Link.Platforms)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("XPLAT_LOG_LEVEL", "debug")
	t.Setenv("XPLAT_LOG_DEVELOPMENT", "true")
	t.Setenv("XPLAT_REPORT_FORMAT", "md")
	t.Setenv("XPLAT_WATCH_DEBOUNCE", "1s")
	t.Setenv("XPLAT_WATCH_PATTERNS", "*.toml,*.wit.json")

	cfg, err := Parse("[log]\nlevel = \"warn\"\n")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, FormatMarkdown, cfg.Report.Format)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, []string{"*.toml", "*.wit.json"}, cfg.Watch.Patterns)
}

func TestEnvironmentOverridesAreValidated(t *testing.T) {
	t.Run("bad boolean", func(t *testing.T) {
		t.Setenv("XPLAT_LOG_DEVELOPMENT", "sometimes")
		_, err := Parse("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "XPLAT_LOG_DEVELOPMENT")
	})
	t.Run("bad format", func(t *testing.T) {
		t.Setenv("XPLAT_REPORT_FORMAT", "yaml")
		_, err := Parse("")
		var cfgErrs *errors.ConfigErrors
		require.True(t, stderrors.As(err, &cfgErrs))
		assert.Equal(t, 1, cfgErrs.Len())
	})
}

func TestValidationErrorsAreBatched(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{
			name: "bad platform and strategy",
			content: `
[link]
platforms = ["android", "android", "bad name"]

[platforms.ios]
match = "fuzzy"
prefix_lengths = [0]
`,
			want: 4,
		},
		{
			name: "namespaces",
			content: `
[[namespaces]]
platform = ""
key = ""
namespace = ""
`,
			want: 3,
		},
		{
			name: "overrides and report",
			content: `
[[overrides]]
class = "A.B"
kind = "sideways"

[[overrides]]
class = ""
kind = "reference"

[[overrides]]
class = "A.C"
kind = "reference"

[[overrides]]
class = "A.C"
kind = "value-one-way"

[report]
format = "pdf"
`,
			want: 4,
		},
		{
			name:    "unknown key",
			content: "[link]\nplatfroms = [\"ios\"]\n",
			want:    1,
		},
		{
			name:    "bad globs",
			content: "[exclude]\ntypes = [\"[\"]\n\n[watch]\npatterns = [\"{\"]\n",
			want:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			require.Error(t, err)

			var cfgErrs *errors.ConfigErrors
			require.True(t, stderrors.As(err, &cfgErrs), "want *errors.ConfigErrors, got %T", err)
			assert.Equal(t, tt.want, cfgErrs.Len(), cfgErrs.Error())
		})
	}
}

func TestParseRejectsInvalidTOML(t *testing.T) {
	_, err := Parse("[link\n")
	require.Error(t, err)

	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.PhaseLoad, e.Phase)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, os.IsNotExist(err) || stderrors.Is(err, os.ErrNotExist))
}

func TestLinkerRejectsAmbiguousMappings(t *testing.T) {
	cfg, err := Parse(`
[[namespaces]]
platform = "android"
key = "com.contoso"
namespace = "A"

[[namespaces]]
platform = "android"
key = "com.contoso"
namespace = "B"
`)
	require.NoError(t, err)

	_, err = cfg.Linker()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous_mapping")
}
