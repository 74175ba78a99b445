package dagmgr

import "github.com/epic-project/epicd/logs"

// log is the dagmgr subsystem logger, silent until UseLogger wires a
// real backend in place, matching the rest of the corpus's
// per-package logger convention.
var log = logs.Disabled

// UseLogger sets the logger used by package dagmgr.
func UseLogger(logger *logs.Logger) {
	log = logger
}
