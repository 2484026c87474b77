package eventlog

import "github.com/yndnr/slotcache-go/internal/telemetry/logger"

// logSink reports every event through the structured application
// logger, at debug level for successes and warn for failures.
type logSink struct {
	log logger.Logger
}

// NewLogSink builds a Sink that reports events through l.
func NewLogSink(l logger.Logger) Sink {
	return &logSink{log: l}
}

func (s *logSink) log_(msg string, errCode Error, args ...any) {
	if errCode == ErrorNone {
		s.log.Debug(msg, args...)
		return
	}
	s.log.Warn(msg, append(args, "error_code", int(errCode))...)
}

func (s *logSink) Add(site string, errCode Error, size, count int) {
	s.log_("eventlog: add", errCode, "site", site, "size", size, "count", count)
}

func (s *logSink) Get(site string, errCode Error, size, count int) {
	s.log_("eventlog: get", errCode, "site", site, "size", size, "count", count)
}

func (s *logSink) Store(site string, errCode Error, size int, objType string) {
	s.log_("eventlog: store", errCode, "site", site, "size", size, "type", objType)
}

func (s *logSink) Mutate(site string, errCode Error, size int, objType string) {
	s.log_("eventlog: mutate", errCode, "site", site, "size", size, "type", objType)
}

func (s *logSink) CacheBackup(site string, errCode Error, size int, local bool) {
	s.log_("eventlog: cache backup", errCode, "site", site, "size", size, "local", local)
}

func (s *logSink) StoreLocalBackup(site string, errCode Error, path string) {
	s.log_("eventlog: store local backup", errCode, "site", site, "path", path)
}

func (s *logSink) ServiceError(errCode Error) {
	s.log_("eventlog: service error", errCode)
}
