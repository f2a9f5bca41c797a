// Package linker implements the link pass that turns per-platform descriptor
// streams into one validated canonical model.
//
// # Main Types
//
//   - MappingSet: validated namespace mappings, native identity to namespace
//   - Linker: runs resolve, build, classify and detect
//   - Result: frozen model plus the ordered conflict list
//
// # Namespace Resolution
//
// Android and Windows types resolve by exact package or namespace string.
// iOS types resolve by class name prefix; when several prefixes match, the
// longest one wins. Unmapped types are excluded from the model and counted.
//
// # Thread Safety
//
// MappingSet and Linker are immutable after construction and safe for
// concurrent use. Each Link call owns its model.
//
// # Example
//
//	mappings, err := NewMappingSet(decls, MappingOptions{})
//	if err != nil {
//	    return err // *errors.ConfigErrors with every problem
//	}
//	res, err := New(mappings, DefaultOptions()).Link(ctx, android, ios)
//	if err != nil {
//	    return err
//	}
//	if !res.Generatable() {
//	    // report res.Conflicts
//	}
package linker
