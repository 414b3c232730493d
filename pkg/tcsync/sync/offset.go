// Package sync compares the Master's own merged dataset against the
// Slave's partial sample to produce an OffsetReport and, optionally,
// a corrected Master dataset.
package sync

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/tcsync-project/tcsync/pkg/tcsync/core"
	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// Config selects how the Master dataset is rewritten once the fine
// offset is known. Mode defaults to types.CorrectionTrim.
type Config struct {
	Mode  types.CorrectionMode
	Paths types.SessionPaths
}

// Result is everything ComputeReport produces: the report itself and,
// when a rewrite was applied, the corrected record sequence. ComputeReport
// writes nothing to disk; WriteCorrected persists Corrected to
// Paths.MasterCorrected().
type Result struct {
	Report    types.OffsetReport
	Corrected []types.ChannelRecord
}

// ComputeReport compares the Master's own merged dataset against the
// Slave's partial sample: elementwise differences over the shorter
// length, aggregate statistics, and the configured rewrite of the
// Master sequence. Both inputs are already-merged, already-sorted
// sequences.
func ComputeReport(masterRecords, slaveRecords []types.ChannelRecord, cfg Config, generatedAt time.Time) (Result, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = types.CorrectionTrim
	}

	if len(slaveRecords) < definition.MinPartialRecords {
		return Result{Report: types.OffsetReport{
			GeneratedAt:      generatedAt,
			SampleCount:      len(slaveRecords),
			InsufficientData: true,
		}}, nil
	}

	n := len(masterRecords)
	if len(slaveRecords) < n {
		n = len(slaveRecords)
	}

	diffs := make([]float64, n)
	for i := 0; i < n; i++ {
		diffs[i] = float64(int64(masterRecords[i].Timestamp) - int64(slaveRecords[i].Timestamp))
	}

	mean, err := stats.Mean(diffs)
	if err != nil {
		return Result{}, err
	}
	min, err := stats.Min(diffs)
	if err != nil {
		return Result{}, err
	}
	max, err := stats.Max(diffs)
	if err != nil {
		return Result{}, err
	}
	stddev, err := stats.StandardDeviation(diffs)
	if err != nil {
		return Result{}, err
	}

	var relativeSpread float64
	if mean != 0 {
		relativeSpread = (max - min) / mean * 100
	}

	report := types.OffsetReport{
		GeneratedAt:    generatedAt,
		SampleCount:    n,
		Mean:           mean,
		Min:            min,
		Max:            max,
		StdDev:         stddev,
		RelativeSpread: relativeSpread,
		Applied:        mode,
	}

	corrected, err := applyCorrection(masterRecords, slaveRecords, mode, mean)
	if err != nil {
		return Result{}, err
	}
	if mode != types.CorrectionNone {
		report.CorrectedFile = cfg.Paths.MasterCorrected()
	}

	return Result{Report: report, Corrected: corrected}, nil
}

// applyCorrection produces the rewritten Master sequence. For the trim
// rewrite, S is the start-point sync point: the later of the two
// datasets' first (minimum) timestamp, since both sequences are
// already sorted ascending.
func applyCorrection(masterRecords, slaveRecords []types.ChannelRecord, mode types.CorrectionMode, mean float64) ([]types.ChannelRecord, error) {
	switch mode {
	case types.CorrectionNone:
		return nil, nil

	case types.CorrectionShift:
		shifted := make([]types.ChannelRecord, len(masterRecords))
		offset := int64(mean)
		for i, r := range masterRecords {
			shifted[i] = types.ChannelRecord{
				Channel:   r.Channel,
				Timestamp: types.Timestamp(int64(r.Timestamp) + offset),
			}
		}
		return shifted, nil

	default: // types.CorrectionTrim
		if len(masterRecords) == 0 || len(slaveRecords) == 0 {
			return nil, nil
		}
		s := masterRecords[0].Timestamp
		if slaveRecords[0].Timestamp > s {
			s = slaveRecords[0].Timestamp
		}
		var trimmed []types.ChannelRecord
		for _, r := range masterRecords {
			if r.Timestamp >= s {
				trimmed = append(trimmed, r)
			}
		}
		return trimmed, nil
	}
}

// WriteCorrected persists the corrected dataset, if any, to its
// well-known path. The original Master file is never touched.
func WriteCorrected(cfg Config, result Result) error {
	if result.Corrected == nil {
		return nil
	}
	return core.WriteBinary(cfg.Paths.MasterCorrected(), result.Corrected)
}
