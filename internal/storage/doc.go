// Package storage defines the external storage driver contract
// (contract.go): the set of operations the accumulator engine needs
// from whatever wide-column/key-column backend sits behind it.
//
// internal/storage/badgerstore is the one concrete Driver in this
// tree, built on an embedded Badger instance. Anything else
// satisfying Driver is equally acceptable to the engine.
package storage
