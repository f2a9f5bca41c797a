// Package classify decides how each canonical class crosses the script bridge.
//
// Classes are marshalled by reference unless an override or, with inference
// enabled, their structure selects a by-value kind. Classes used as event
// payloads are always value-one-way.
//
// After kinds are assigned the canonical view is projected: one-way classes
// lose constructors, methods, events and setters; two-way classes keep every
// property but flag those holding by-reference classes.
package classify
