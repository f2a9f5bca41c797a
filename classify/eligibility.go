package classify

import (
	"strings"

	"github.com/wippyai/xplat/model"
)

// Eligibility summarizes which by-value kinds a class's structure allows.
type Eligibility struct {
	Reasons map[model.MarshalKind][]string
	OneWay  bool
	TwoWay  bool
	// ConfigurationRequired is set when the class has a parameterless
	// constructor everywhere and only get-only properties. Its structure fits
	// neither rule cleanly and a kind must be configured.
	ConfigurationRequired bool
}

// Allows reports whether kind is structurally permitted.
func (e Eligibility) Allows(kind model.MarshalKind) bool {
	switch kind {
	case model.ByValueOneWay:
		return e.OneWay
	case model.ByValueTwoWay:
		return e.TwoWay
	}
	return true
}

// Why joins the reasons kind is not allowed.
func (e Eligibility) Why(kind model.MarshalKind) string {
	return strings.Join(e.Reasons[kind], "; ")
}

// Eligible inspects the structure of c across every platform defining it.
func Eligible(c *model.ClassDescriptor) Eligibility {
	e := Eligibility{Reasons: make(map[model.MarshalKind][]string)}
	oneWay := func(r string) { e.Reasons[model.ByValueOneWay] = append(e.Reasons[model.ByValueOneWay], r) }
	twoWay := func(r string) { e.Reasons[model.ByValueTwoWay] = append(e.Reasons[model.ByValueTwoWay], r) }

	platforms := c.Platforms()
	var hasMethods, hasEvents, anySetter, allGetSet bool
	allGetSet = true
	for _, m := range c.Members {
		switch m.Kind {
		case model.Method:
			hasMethods = true
		case model.Event:
			hasEvents = true
		case model.Property:
			if m.AnySetter() {
				anySetter = true
			}
			if !m.Gettable() || !m.Settable() || len(m.Shapes) != len(platforms) {
				allGetSet = false
			}
		}
	}

	var ctorAny, ctorAll bool
	if ctor := c.ParameterlessConstructor(); ctor != nil && !ctor.Static {
		ctorAny = len(ctor.Shapes) > 0
		ctorAll = len(ctor.Shapes) == len(platforms)
	}

	if hasMethods {
		oneWay("class has methods")
		twoWay("class has methods")
	}
	if hasEvents {
		oneWay("class has events")
		twoWay("class has events")
	}
	if anySetter {
		oneWay("class has settable properties")
	}
	if ctorAny {
		oneWay("class has a public parameterless constructor")
	}
	if !ctorAll {
		twoWay("no public parameterless constructor on every platform")
	}
	if !allGetSet {
		twoWay("not every property is gettable and settable on every platform")
	}

	e.OneWay = len(e.Reasons[model.ByValueOneWay]) == 0
	e.TwoWay = len(e.Reasons[model.ByValueTwoWay]) == 0
	e.ConfigurationRequired = ctorAll && !hasMethods && !hasEvents && !anySetter
	return e
}
