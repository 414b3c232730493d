package core

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// WriteBinary writes records as [u64 timestamp_le][i32 channel_le]
// pairs.
func WriteBinary(path string, records []types.ChannelRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	var buf [12]byte
	for _, r := range records {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(r.Timestamp))
		binary.LittleEndian.PutUint32(buf[8:12], uint32(r.Channel))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadBinary parses the binary record format back into memory. This
// is the inverse of WriteBinary, used both for round-trip tests and
// to load the Master's own dataset back in for synchronization.
func ReadBinary(path string) ([]types.ChannelRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var records []types.ChannelRecord
	var buf [12]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		ts := binary.LittleEndian.Uint64(buf[0:8])
		ch := binary.LittleEndian.Uint32(buf[8:12])
		records = append(records, types.ChannelRecord{
			Channel:   types.ChannelId(ch),
			Timestamp: types.Timestamp(ts),
		})
	}
	return records, nil
}

// WriteText writes records as "<channel>;<timestamp>\n" lines.
func WriteText(path string, records []types.ChannelRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%d;%d\n", r.Channel, r.Timestamp); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadText parses the textual record format. Parsing is tolerant: a
// malformed line is logged and skipped, never fatal.
func ReadText(path string, log types.Logger) ([]types.ChannelRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []types.ChannelRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ";", 2)
		if len(parts) != 2 {
			if log != nil {
				log.Warnf("skipping malformed text record %q", line)
			}
			continue
		}
		ch, err1 := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
		ts, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err1 != nil || err2 != nil {
			if log != nil {
				log.Warnf("skipping malformed text record %q", line)
			}
			continue
		}
		records = append(records, types.ChannelRecord{
			Channel:   types.ChannelId(ch),
			Timestamp: types.Timestamp(ts),
		})
	}
	return records, scanner.Err()
}

// EncodeText serializes records as "<channel>;<timestamp>\n" lines
// into memory, the text-format counterpart to EncodeBinary used when
// serving request_text over the file link.
func EncodeText(records []types.ChannelRecord) []byte {
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%d;%d\n", r.Channel, r.Timestamp)
	}
	return []byte(b.String())
}

// EncodeBinary serializes records into memory, used when the Slave
// needs to ship a dataset over the file link without going through
// disk twice.
func EncodeBinary(records []types.ChannelRecord) []byte {
	buf := make([]byte, 0, len(records)*12)
	var tmp [12]byte
	for _, r := range records {
		binary.LittleEndian.PutUint64(tmp[0:8], uint64(r.Timestamp))
		binary.LittleEndian.PutUint32(tmp[8:12], uint32(r.Channel))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// DecodeBinary is the inverse of EncodeBinary.
func DecodeBinary(data []byte) []types.ChannelRecord {
	n := len(data) / 12
	records := make([]types.ChannelRecord, 0, n)
	for i := 0; i < n; i++ {
		off := i * 12
		ts := binary.LittleEndian.Uint64(data[off : off+8])
		ch := binary.LittleEndian.Uint32(data[off+8 : off+12])
		records = append(records, types.ChannelRecord{
			Channel:   types.ChannelId(ch),
			Timestamp: types.Timestamp(ts),
		})
	}
	return records
}
