package linker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/classify"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/detect"
	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

var tracer = otel.Tracer("github.com/wippyai/xplat/linker")

// Options configures a link pass.
type Options struct {
	// Overrides maps canonical full class names to a configured marshal kind.
	Overrides map[string]model.MarshalKind
	// Platforms fixes the link order and the platforms every class is expected
	// on. Defaults to the order of the streams passed to Link.
	Platforms []xplat.Platform
	// Exclude holds glob patterns matched against native type names.
	// '*' stops at '.', '**' does not.
	Exclude []string
	// InferValueKinds lets class structure pick a by-value kind.
	InferValueKinds bool
	// SkipPartialWarnings drops partial coverage warnings from the report.
	SkipPartialWarnings bool
}

// DefaultOptions returns default link configuration.
func DefaultOptions() Options {
	return Options{
		Platforms: xplat.DefaultPlatforms(),
	}
}

// Linker runs link passes over descriptor streams.
// A Linker holds no per-pass state and is safe for concurrent use.
type Linker struct {
	mappings *MappingSet
	options  Options
}

// New creates a Linker over a validated mapping set.
func New(mappings *MappingSet, opts Options) *Linker {
	return &Linker{
		mappings: mappings,
		options:  opts,
	}
}

// Mappings returns the namespace mappings.
func (l *Linker) Mappings() *MappingSet {
	return l.mappings
}

// Options returns the configuration.
func (l *Linker) Options() Options {
	return l.options
}

// TypeRef names a native type dropped from the model.
type TypeRef struct {
	Platform   xplat.Platform `json:"platform"`
	NativeName string         `json:"native_name"`
	// Rule is the exclusion pattern that matched, empty for unmapped types.
	Rule string `json:"rule,omitempty"`
}

// Result is the output of a link pass: the frozen model and its conflicts.
type Result struct {
	Model     *model.ApiModel
	Kinds     map[model.MarshalKind]int
	Conflicts []detect.Conflict
	Excluded  []TypeRef
	Unmapped  []TypeRef
	Duration  time.Duration
}

// Generatable reports whether code generation may run on this result.
func (r *Result) Generatable() bool {
	return r != nil && !detect.HasErrors(r.Conflicts)
}

// Link runs resolve, build, classify and detect over the given streams.
//
// Configuration problems (ambiguous overrides, invalid globs) abort the pass
// and are returned together; use detect.FromConfigErrors to report them.
// Structural divergences never abort: they are returned in Result.Conflicts.
func (l *Linker) Link(ctx context.Context, streams ...*descriptor.Stream) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "linker.Link", trace.WithAttributes(attribute.Int("streams", len(streams))))
	defer span.End()

	res, err := l.link(ctx, streams)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		Logger().Warn("link pass failed", zap.Error(err))
		return nil, err
	}

	res.Duration = time.Since(start)
	linkDuration.Observe(res.Duration.Seconds())
	linkClasses.Set(float64(res.Model.Len()))
	errs, warns := detect.Count(res.Conflicts)
	linkConflicts.WithLabelValues(detect.Error.String()).Add(float64(errs))
	linkConflicts.WithLabelValues(detect.Warning.String()).Add(float64(warns))
	span.SetAttributes(
		attribute.Int("classes", res.Model.Len()),
		attribute.Int("conflicts.errors", errs),
		attribute.Int("conflicts.warnings", warns),
	)

	Logger().Info("link pass complete",
		zap.Int("classes", res.Model.Len()),
		zap.Int("errors", errs),
		zap.Int("warnings", warns),
		zap.Int("excluded", len(res.Excluded)),
		zap.Int("unmapped", len(res.Unmapped)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (l *Linker) link(ctx context.Context, streams []*descriptor.Stream) (*Result, error) {
	excludes, err := compileExcludes(l.options.Exclude)
	if err != nil {
		return nil, linkError("config", "", "invalid exclusion patterns", err)
	}

	platforms := l.linkOrder(streams)
	res := &Result{}

	builder, err := l.resolve(ctx, platforms, streams, excludes, res)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, buildSpan := tracer.Start(ctx, "linker.build")
	m, err := builder.Build()
	buildSpan.End()
	if err != nil {
		return nil, linkError("build", "", "invalid descriptor overrides", err)
	}
	res.Model = m

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, classifySpan := tracer.Start(ctx, "linker.classify")
	cls, err := classify.Classify(m, classify.Options{
		Overrides:       l.options.Overrides,
		InferValueKinds: l.options.InferValueKinds,
	})
	classifySpan.End()
	if err != nil {
		return nil, linkError("classify", "", "invalid marshal kind overrides", err)
	}
	res.Kinds = cls.Kinds
	m.Freeze()

	_, detectSpan := tracer.Start(ctx, "linker.detect")
	conflicts := detect.Detect(m, detect.Options{
		Expected:            l.options.Platforms,
		SkipPartialWarnings: l.options.SkipPartialWarnings,
	})
	for _, name := range cls.UnusedOverrides {
		conflicts = append(conflicts, detect.Conflict{
			Severity:    detect.Warning,
			Code:        detect.CodeUnusedOverride,
			Subject:     name,
			Description: fmt.Sprintf("override for %s matches no linked class", name),
		})
	}
	detect.Sort(conflicts)
	detectSpan.End()
	res.Conflicts = conflicts
	return res, nil
}

func (l *Linker) resolve(ctx context.Context, platforms []xplat.Platform, streams []*descriptor.Stream, excludes []exclusion, res *Result) (*model.Builder, error) {
	_, span := tracer.Start(ctx, "linker.resolve")
	defer span.End()

	b := model.NewBuilder(platforms...)
	for _, s := range streams {
		if s == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := s.Platform
		for _, td := range s.Types {
			if rule, ok := matchExclusion(excludes, td.NativeName); ok {
				res.Excluded = append(res.Excluded, TypeRef{Platform: p, NativeName: td.NativeName, Rule: rule})
				linkTypes.WithLabelValues(string(p), "excluded").Inc()
				continue
			}
			ns, name, ok := l.mappings.ResolveType(p, td)
			if !ok {
				Logger().Debug("native type unmapped",
					zap.String("platform", string(p)),
					zap.String("type", td.NativeName))
				res.Unmapped = append(res.Unmapped, TypeRef{Platform: p, NativeName: td.NativeName})
				linkTypes.WithLabelValues(string(p), "unmapped").Inc()
				continue
			}
			b.Add(p, model.ResolvedType{Namespace: ns, Name: name, Decl: td})
			linkTypes.WithLabelValues(string(p), "linked").Inc()
		}
	}
	span.SetAttributes(
		attribute.Int("excluded", len(res.Excluded)),
		attribute.Int("unmapped", len(res.Unmapped)),
	)
	return b, nil
}

func (l *Linker) linkOrder(streams []*descriptor.Stream) []xplat.Platform {
	seen := make(map[xplat.Platform]bool)
	var out []xplat.Platform
	add := func(p xplat.Platform) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range l.options.Platforms {
		add(p)
	}
	for _, s := range streams {
		if s != nil {
			add(s.Platform)
		}
	}
	return out
}

type exclusion struct {
	pattern string
	glob    glob.Glob
}

func compileExcludes(patterns []string) ([]exclusion, error) {
	cfgErrs := &errors.ConfigErrors{}
	out := make([]exclusion, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '.')
		if err != nil {
			cfgErrs.Add(errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
				Path("exclude").
				Detail("invalid pattern %q", p).
				Cause(err).
				Build())
			continue
		}
		out = append(out, exclusion{pattern: p, glob: g})
	}
	if err := cfgErrs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func matchExclusion(excludes []exclusion, name string) (string, bool) {
	for _, e := range excludes {
		if e.glob.Match(name) {
			return e.pattern, true
		}
	}
	return "", false
}
