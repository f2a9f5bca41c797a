// Package descriptor defines the per-platform API descriptor streams consumed by
// the linker.
//
// Descriptor streams are produced by platform-specific source parsers outside this
// module. The linker treats them as an ingestible contract: one Stream per
// platform, one TypeDecl per native class, members in declaration order. Type
// references inside members name native types; the model builder maps them to
// canonical classes once namespaces are resolved.
//
// Streams can be decoded from JSON or CBOR files, or derived from WIT type
// definitions for wasm component targets:
//
//	s, err := descriptor.LoadFile("android.json")
//	s, err := descriptor.FromWIT("contoso:widgets/types", defs)
package descriptor
