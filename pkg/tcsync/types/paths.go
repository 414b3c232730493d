package types

import (
	"fmt"
	"path/filepath"
	"time"
)

// SessionPaths is the single source of truth for every artefact name a
// session produces, keyed off one YYYYMMDD_HHMMSS base timestamp.
type SessionPaths struct {
	Dir  string
	Base string
}

// NewSessionPaths derives the base name from the given instant.
func NewSessionPaths(dir string, at time.Time) SessionPaths {
	return SessionPaths{Dir: dir, Base: at.Format("20060102_150405")}
}

func (p SessionPaths) join(name string) string {
	return filepath.Join(p.Dir, name)
}

func (p SessionPaths) MasterBinary() string {
	return p.join(fmt.Sprintf("master_results_%s.bin", p.Base))
}

func (p SessionPaths) MasterText() string {
	return p.join(fmt.Sprintf("master_results_%s.txt", p.Base))
}

func (p SessionPaths) SlaveBinary() string {
	return p.join(fmt.Sprintf("slave_results_%s.bin", p.Base))
}

func (p SessionPaths) SlaveText() string {
	return p.join(fmt.Sprintf("slave_results_%s.txt", p.Base))
}

func (p SessionPaths) MasterCorrected() string {
	return p.join(fmt.Sprintf("master_results_%s_sync_corrected.bin", p.Base))
}

func (p SessionPaths) SyncReport() string {
	return p.join(fmt.Sprintf("sync_report_%s.txt", p.Base))
}

func (p SessionPaths) PartialData(n int) string {
	return p.join(fmt.Sprintf("partial_data_%d.bin", n))
}
