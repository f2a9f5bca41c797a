// Package detect finds divergences between the platforms of a linked model.
//
// Detect is exhaustive: every class and member is checked and all conflicts
// are returned in one ordered list, errors first. Any Error conflict blocks
// downstream generation; warnings only describe partial availability.
package detect
