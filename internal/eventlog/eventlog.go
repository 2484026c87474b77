// Package eventlog provides a pluggable event sink for the outcome of
// every cache operation -- add, get, store, mutate, cache backup, and
// local backup fallback -- independent of the structured application
// log. A deployment that needs per-event accounting (e.g. billing,
// SLA tracking) can supply its own Sink; the default is a no-op.
package eventlog

// Error classifies why an event did not complete cleanly. Zero means
// success.
type Error int

const (
	// ErrorNone indicates the event completed without error.
	ErrorNone Error = 0
	// ErrorOther is an unclassified failure.
	ErrorOther Error = 1
	// ErrorNetwork indicates a network-level failure talking to a
	// remote storage backend.
	ErrorNetwork Error = 5
	// ErrorStorage indicates the storage backend itself rejected or
	// failed the operation.
	ErrorStorage Error = 6
)

// Sink receives one event per cache operation outcome.
type Sink interface {
	// Add records an accumulator add() call for a site.
	Add(site string, errCode Error, size, count int)
	// Get records a read for a site.
	Get(site string, errCode Error, size, count int)
	// Store records a slot store to the storage backend.
	Store(site string, errCode Error, size int, objType string)
	// Mutate records a timeline mutation (insert+remove) applied during a merge.
	Mutate(site string, errCode Error, size int, objType string)
	// CacheBackup records a snapshot write, local reporting whether it
	// fell back to the local filesystem.
	CacheBackup(site string, errCode Error, size int, local bool)
	// StoreLocalBackup records a write to the local fallback path.
	StoreLocalBackup(site string, errCode Error, path string)
	// ServiceError records an error with no specific site association.
	ServiceError(errCode Error)
}

// nullSink discards every event.
type nullSink struct{}

func (nullSink) Add(string, Error, int, int)           {}
func (nullSink) Get(string, Error, int, int)           {}
func (nullSink) Store(string, Error, int, string)      {}
func (nullSink) Mutate(string, Error, int, string)     {}
func (nullSink) CacheBackup(string, Error, int, bool)   {}
func (nullSink) StoreLocalBackup(string, Error, string) {}
func (nullSink) ServiceError(Error)                     {}

// Null is a Sink that discards every event.
var Null Sink = nullSink{}
