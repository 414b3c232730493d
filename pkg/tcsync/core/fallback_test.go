package core

import (
	"testing"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

func TestParseFallbackValues_TolerantOfMalformedTokens(t *testing.T) {
	log := definition.NewDefaultLogger()
	ch := types.ChannelId(3)

	records := parseFallbackValues(ch, " 10 ; ; garbage;20;", log)

	want := []uint64{10, 20}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(records), len(want), records)
	}
	for i, r := range records {
		if r.Channel != ch {
			t.Errorf("record %d: got channel %d, want %d", i, r.Channel, ch)
		}
		if uint64(r.Timestamp) != want[i] {
			t.Errorf("record %d: got timestamp %d, want %d", i, r.Timestamp, want[i])
		}
	}
}

func TestParseFallbackValues_EmptyStringProducesNoRecords(t *testing.T) {
	records := parseFallbackValues(types.ChannelId(1), "", definition.NewDefaultLogger())
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}

func TestParseFallbackValues_AllMalformedProducesNoRecords(t *testing.T) {
	records := parseFallbackValues(types.ChannelId(1), ";;;garbage;  ;", definition.NewDefaultLogger())
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0: %+v", len(records), records)
	}
}
