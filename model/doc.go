// Package model implements the canonical cross-platform API model.
//
// # Main Types
//
//   - ApiModel: namespace tree plus the set of linked platforms
//   - Namespace: hierarchical node ("Contoso.Widgets") holding classes
//   - ClassDescriptor: one canonical class with per-platform native types
//   - MemberDescriptor: closed variant over constructor, property, method, event
//   - TypeShape: canonical parameter/return/property shape
//
// # Matching
//
// Classes from different platforms are the same class when their canonical
// namespace and class name match. Methods and constructors match on
// (kind, name, static, arity); properties and events match on name. Members
// missing on some platforms are kept with their presence set so partial
// availability is reported instead of dropped.
//
// # Lifecycle
//
// A Builder produces the model once per link pass. The classifier annotates it,
// then Freeze marks it immutable for detection and code generation.
package model
