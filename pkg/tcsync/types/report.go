package types

import (
	"fmt"
	"strings"
	"time"
)

// CorrectionMode selects how the Master's dataset is rewritten once
// the fine offset is known: trimmed to the later stream start, shifted
// by the mean offset, or left alone. Default is CorrectionTrim.
type CorrectionMode string

const (
	CorrectionTrim  CorrectionMode = "trim"
	CorrectionShift CorrectionMode = "shift"
	CorrectionNone  CorrectionMode = "none"
)

// OffsetReport is the outcome of the synchronization engine: the
// aggregate statistics over the compared sample, plus a record of
// which correction (if any) was applied to the Master dataset.
type OffsetReport struct {
	GeneratedAt     time.Time
	SampleCount     int
	Mean            float64
	Min             float64
	Max             float64
	StdDev          float64
	RelativeSpread  float64
	Applied         CorrectionMode
	CorrectedFile   string
	InsufficientData bool
	Warnings        []string
}

// Render produces the textual report document persisted alongside the
// session's datasets.
func (r OffsetReport) Render() string {
	var b strings.Builder
	corrected := r.CorrectedFile
	if corrected == "" {
		corrected = "none"
	}
	applied := r.Applied
	if applied == "" {
		applied = CorrectionNone
	}

	fmt.Fprintf(&b, "Synchronization Analysis Report\n")
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format("20060102_150405"))
	if r.InsufficientData {
		fmt.Fprintf(&b, "Sample count: %d\n", r.SampleCount)
		fmt.Fprintf(&b, "Status: insufficient data\n")
		fmt.Fprintf(&b, "Applied: none\n")
		fmt.Fprintf(&b, "Corrected file: none\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "Warning: %s\n", w)
		}
		return b.String()
	}
	fmt.Fprintf(&b, "Sample count: %d\n", r.SampleCount)
	fmt.Fprintf(&b, "Mean offset:  %.3f ns\n", r.Mean)
	fmt.Fprintf(&b, "Min offset:   %.3f ns\n", r.Min)
	fmt.Fprintf(&b, "Max offset:   %.3f ns\n", r.Max)
	fmt.Fprintf(&b, "Std deviation:%.3f ns\n", r.StdDev)
	fmt.Fprintf(&b, "Relative spread: %.3f%%\n", r.RelativeSpread)
	fmt.Fprintf(&b, "Applied: %s\n", applied)
	fmt.Fprintf(&b, "Corrected file: %s\n", corrected)
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	return b.String()
}
