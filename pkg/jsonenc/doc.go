// Package jsonenc provides the deterministic JSON encoding used for
// accumulator responses and stored values.
//
// Go's encoding/json already sorts map keys during marshaling, which
// gives the engine everything the "opaque JSON encoder" contract in
// spec.md needs (numeric types pass through natively, strings are
// quoted, keys are ordered); no third-party encoder in the example
// corpus offers a canonical-key mode that encoding/json doesn't already
// provide for free, so this package is a thin, intentional wrapper
// rather than a dependency.
package jsonenc
