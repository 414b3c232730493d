package sync

import (
	"testing"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

func records(channel types.ChannelId, timestamps ...uint64) []types.ChannelRecord {
	out := make([]types.ChannelRecord, len(timestamps))
	for i, ts := range timestamps {
		out[i] = types.ChannelRecord{Channel: channel, Timestamp: types.Timestamp(ts)}
	}
	return out
}

func TestComputeReport_MeanAndTrimCorrection(t *testing.T) {
	master := records(1, 1000, 1100, 1200, 1300, 1400, 1500, 1700, 1800, 1900, 2000)
	slave := records(1, 900, 1000, 1100, 1200, 1300, 1400, 1600, 1700, 1800, 1900)

	cfg := Config{Mode: types.CorrectionTrim, Paths: types.NewSessionPaths(t.TempDir(), time.Unix(0, 0))}
	result, err := ComputeReport(master, slave, cfg, time.Now())
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}

	if result.Report.SampleCount != len(master) {
		t.Fatalf("got sample count %d, want %d", result.Report.SampleCount, len(master))
	}
	if result.Report.Mean != 100 {
		t.Fatalf("got mean %v, want 100", result.Report.Mean)
	}
	if result.Report.Applied != types.CorrectionTrim {
		t.Fatalf("got applied mode %v, want trim", result.Report.Applied)
	}

	s := master[0].Timestamp
	if slave[0].Timestamp > s {
		s = slave[0].Timestamp
	}
	for _, r := range result.Corrected {
		if r.Timestamp < s {
			t.Fatalf("trimmed record %+v below sync point %d", r, s)
		}
	}
}

func TestComputeReport_InsufficientDataUnderFloor(t *testing.T) {
	master := records(1, 1, 2, 3)
	slave := records(1, 1, 2, 3)

	cfg := Config{Mode: types.CorrectionTrim, Paths: types.NewSessionPaths(t.TempDir(), time.Unix(0, 0))}
	result, err := ComputeReport(master, slave, cfg, time.Now())
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}
	if !result.Report.InsufficientData {
		t.Fatalf("expected insufficient data report, got %+v", result.Report)
	}
	if result.Corrected != nil {
		t.Fatalf("expected no rewrite, got %d records", len(result.Corrected))
	}
}

func TestComputeReport_TruncatesToShorterSequence(t *testing.T) {
	master := records(1, 100, 200, 300)
	slave := records(1, 90, 190, 290, 390, 490, 590, 690, 790, 890, 990)

	cfg := Config{Mode: types.CorrectionNone, Paths: types.NewSessionPaths(t.TempDir(), time.Unix(0, 0))}
	result, err := ComputeReport(master, slave, cfg, time.Now())
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}
	if result.Report.SampleCount != len(master) {
		t.Fatalf("got sample count %d, want %d", result.Report.SampleCount, len(master))
	}
}

func TestComputeReport_MeanZeroIsAlreadySynchronized(t *testing.T) {
	master := records(1, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000)
	slave := records(1, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000)

	cfg := Config{Mode: types.CorrectionShift, Paths: types.NewSessionPaths(t.TempDir(), time.Unix(0, 0))}
	result, err := ComputeReport(master, slave, cfg, time.Now())
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}
	if result.Report.Mean != 0 {
		t.Fatalf("got mean %v, want 0", result.Report.Mean)
	}
	if result.Report.RelativeSpread != 0 {
		t.Fatalf("got relative spread %v, want 0 to avoid division by zero", result.Report.RelativeSpread)
	}
}

func TestComputeReport_IdempotentAcrossRuns(t *testing.T) {
	master := records(1, 1000, 1100, 1200, 1300, 1400, 1500, 1700, 1800, 1900, 2000)
	slave := records(1, 900, 1000, 1100, 1200, 1300, 1400, 1600, 1700, 1800, 1900)
	cfg := Config{Mode: types.CorrectionTrim, Paths: types.NewSessionPaths(t.TempDir(), time.Unix(0, 0))}

	first, err := ComputeReport(master, slave, cfg, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("ComputeReport (first): %v", err)
	}
	second, err := ComputeReport(master, slave, cfg, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("ComputeReport (second): %v", err)
	}

	if first.Report.Render() != second.Report.Render() {
		t.Fatalf("reports differ between identical runs:\n%s\nvs\n%s", first.Report.Render(), second.Report.Render())
	}
	if len(first.Corrected) != len(second.Corrected) {
		t.Fatalf("corrected record counts differ: %d vs %d", len(first.Corrected), len(second.Corrected))
	}
}
