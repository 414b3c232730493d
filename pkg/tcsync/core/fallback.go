package core

import (
	"strconv"
	"strings"

	"github.com/tcsync-project/tcsync/internal/tc"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// FallbackCollect is the direct SCPI collection path Pipeline.Run uses
// when stream setup (DLT start-stream) fails. DLT failures during
// status, stop or list come later, in cleanup, and are logged and
// ignored there instead of switching to this path. It leaves
// DLT in whatever state it was found in and produces the same record
// shape the streaming pipeline would. No sub-acquisition offset
// correction applies here: everything arrives as a single
// pseudo-batch per channel.
func FallbackCollect(client *tc.Client, channels []types.ChannelId, log types.Logger) []types.ChannelRecord {
	var records []types.ChannelRecord
	for _, ch := range channels {
		count, err := client.DataCount(ch)
		if err != nil {
			log.Warnf("fallback: DATA:COUNt? failed for channel %d: %v", ch, err)
			continue
		}
		if count <= 0 {
			continue
		}
		raw, err := client.DataValues(ch)
		if err != nil {
			log.Warnf("fallback: DATA:VALue? failed for channel %d: %v", ch, err)
			continue
		}
		records = append(records, parseFallbackValues(ch, raw, log)...)
	}
	return records
}

// parseFallbackValues splits the semicolon-delimited ASCII string the
// TC returns for one channel's fallback fetch. Every token is parsed
// tolerantly: a malformed or empty token is logged and skipped rather
// than aborting the collection.
func parseFallbackValues(ch types.ChannelId, raw string, log types.Logger) []types.ChannelRecord {
	var records []types.ChannelRecord
	for _, token := range strings.Split(raw, ";") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		v, err := strconv.ParseUint(token, 10, 64)
		if err != nil {
			log.Warnf("fallback: skipping malformed value %q on channel %d: %v", token, ch, err)
			continue
		}
		records = append(records, types.ChannelRecord{
			Channel:   ch,
			Timestamp: types.Timestamp(v),
		})
	}
	return records
}
