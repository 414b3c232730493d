package supervisor

import "github.com/tcsync-project/tcsync/pkg/tcsync/types"

// BestEffort runs fn and, if it returns an error, logs and swallows
// it instead of propagating. This is the "must not fail" combinator
// for cleanup paths; DLT cleanup (list/stop errors ignored
// categorically) is the canonical use, but any cleanup step that
// should never abort a shutdown sequence belongs here instead of an
// ad-hoc `if err != nil { log; continue }`.
func BestEffort(log types.Logger, description string, fn func() error) {
	if err := fn(); err != nil {
		log.Warnf("best-effort step %q failed, continuing: %v", description, err)
	}
}
