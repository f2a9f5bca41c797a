package classify

import (
	"sort"

	"github.com/wippyai/xplat/errors"
	"github.com/wippyai/xplat/model"
)

// Options configures classification.
type Options struct {
	// Overrides maps canonical full class names to a configured kind.
	Overrides map[string]model.MarshalKind
	// InferValueKinds lets structure select a by-value kind without an override.
	InferValueKinds bool
}

// Result reports what classification did beyond assigning kinds.
type Result struct {
	// UnusedOverrides lists configured class names absent from the model.
	UnusedOverrides []string
	// Kinds counts classes per marshal kind.
	Kinds map[model.MarshalKind]int
}

// Classify assigns a marshal kind to every class and projects the canonical view.
// Invalid overrides are returned together as *errors.ConfigErrors; the model is
// left with every valid assignment applied.
func Classify(m *model.ApiModel, opts Options) (Result, error) {
	res := Result{Kinds: make(map[model.MarshalKind]int)}
	cfgErrs := &errors.ConfigErrors{}

	for name := range opts.Overrides {
		if m.Class(name) == nil {
			res.UnusedOverrides = append(res.UnusedOverrides, name)
		}
	}
	sort.Strings(res.UnusedOverrides)

	classes := m.Classes()
	for _, c := range classes {
		kind, required, errs := decide(c, opts)
		for _, e := range errs {
			cfgErrs.Add(e)
		}
		if err := m.SetKind(c, kind); err != nil {
			return res, err
		}
		if required {
			if err := m.MarkValueKindRequired(c); err != nil {
				return res, err
			}
		}
		res.Kinds[kind]++
	}

	for _, c := range classes {
		if err := project(m, c); err != nil {
			return res, err
		}
	}
	return res, cfgErrs.Err()
}

func decide(c *model.ClassDescriptor, opts Options) (kind model.MarshalKind, required bool, errs []*errors.Error) {
	elig := Eligible(c)
	configured, hasConfigured := opts.Overrides[c.FullName()]

	if c.EventPayload {
		if hasConfigured && configured != model.ByValueOneWay {
			errs = append(errs, errors.InvalidOverride(c.FullName(), configured.String(),
				"event payload classes are always value-one-way"))
		}
		for _, p := range c.Platforms() {
			if k, ok := c.Overrides[p]; ok && k != model.ByValueOneWay {
				e := errors.InvalidOverride(c.FullName(), k.String(), "event payload classes are always value-one-way")
				e.Platform = string(p)
				errs = append(errs, e)
			}
		}
		return model.ByValueOneWay, false, errs
	}

	if hasConfigured {
		if !elig.Allows(configured) {
			errs = append(errs, errors.InvalidOverride(c.FullName(), configured.String(), elig.Why(configured)))
			return model.ByReference, false, errs
		}
		return configured, false, nil
	}

	if declared, ok, agree := c.DeclaredOverride(); ok {
		if !agree {
			// reported by the detector as marshal_kind_mismatch
			return model.ByReference, false, nil
		}
		if !elig.Allows(declared) {
			for _, p := range c.Platforms() {
				if _, ok := c.Overrides[p]; !ok {
					continue
				}
				e := errors.InvalidOverride(c.FullName(), declared.String(), elig.Why(declared))
				e.Platform = string(p)
				errs = append(errs, e)
			}
			return model.ByReference, false, errs
		}
		return declared, false, nil
	}

	if !opts.InferValueKinds {
		return model.ByReference, false, nil
	}
	switch {
	case elig.OneWay && !elig.TwoWay:
		return model.ByValueOneWay, false, nil
	case elig.TwoWay && !elig.OneWay:
		return model.ByValueTwoWay, false, nil
	case elig.ConfigurationRequired:
		return model.ByReference, true, nil
	}
	return model.ByReference, false, nil
}

func project(m *model.ApiModel, c *model.ClassDescriptor) error {
	switch c.Kind {
	case model.ByValueOneWay:
		for _, mem := range append([]*model.MemberDescriptor(nil), c.Members...) {
			switch mem.Kind {
			case model.Constructor, model.Method, model.Event:
				if err := m.Suppress(c, mem); err != nil {
					return err
				}
			case model.Property:
				if mem.AnySetter() {
					if err := m.HideSetters(c, mem); err != nil {
						return err
					}
				}
			}
		}
	case model.ByValueTwoWay:
		for _, mem := range c.MembersOf(model.Property) {
			if referencesByReference(m, mem) {
				if err := m.MarkByReferenceMember(c, mem); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func referencesByReference(m *model.ApiModel, mem *model.MemberDescriptor) bool {
	for _, s := range mem.Shapes {
		name := s.Type.ReferencedClass()
		if name == "" {
			if s.Type.Unresolved() {
				return true
			}
			continue
		}
		if target := m.Class(name); target == nil || target.Kind == model.ByReference {
			return true
		}
	}
	return false
}
