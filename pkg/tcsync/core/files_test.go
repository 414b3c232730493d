package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

func sampleRecords() []types.ChannelRecord {
	return []types.ChannelRecord{
		{Channel: 1, Timestamp: 100},
		{Channel: 2, Timestamp: 105},
		{Channel: 1, Timestamp: 230},
		{Channel: 3, Timestamp: 230},
		{Channel: 2, Timestamp: 999},
	}
}

func assertEqualRecords(t *testing.T, got, want []types.ChannelRecord) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFiles_BinaryTextBinaryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records := sampleRecords()

	binPath := filepath.Join(dir, "out.bin")
	if err := WriteBinary(binPath, records); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	fromBin, err := ReadBinary(binPath)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	assertEqualRecords(t, fromBin, records)

	txtPath := filepath.Join(dir, "out.txt")
	if err := WriteText(txtPath, fromBin); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	fromTxt, err := ReadText(txtPath, definition.NewDefaultLogger())
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	assertEqualRecords(t, fromTxt, records)

	binPath2 := filepath.Join(dir, "out2.bin")
	if err := WriteBinary(binPath2, fromTxt); err != nil {
		t.Fatalf("WriteBinary (second): %v", err)
	}
	again, err := ReadBinary(binPath2)
	if err != nil {
		t.Fatalf("ReadBinary (second): %v", err)
	}
	assertEqualRecords(t, again, records)
}

func TestFiles_EncodeDecodeBinaryIsIdentity(t *testing.T) {
	records := sampleRecords()
	decoded := DecodeBinary(EncodeBinary(records))
	assertEqualRecords(t, decoded, records)
}

func TestFiles_EncodeTextMatchesWriteText(t *testing.T) {
	dir := t.TempDir()
	records := sampleRecords()

	txtPath := filepath.Join(dir, "out.txt")
	if err := WriteText(txtPath, records); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	fromFile, err := ReadText(txtPath, definition.NewDefaultLogger())
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}

	inMemory := EncodeText(records)
	tmpPath := filepath.Join(dir, "mem.txt")
	if err := os.WriteFile(tmpPath, inMemory, 0o644); err != nil {
		t.Fatalf("writing encoded text: %v", err)
	}
	fromMemory, err := ReadText(tmpPath, definition.NewDefaultLogger())
	if err != nil {
		t.Fatalf("ReadText (encoded): %v", err)
	}
	assertEqualRecords(t, fromMemory, fromFile)
}

func TestReadText_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixed.txt")
	content := "1;100\ngarbage\n2;\n;300\n 3 ; 400 \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	records, err := ReadText(path, definition.NewDefaultLogger())
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	want := []types.ChannelRecord{
		{Channel: 1, Timestamp: 100},
		{Channel: 3, Timestamp: 400},
	}
	assertEqualRecords(t, records, want)
}
