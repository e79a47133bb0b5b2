package domain

import (
	"fmt"
	"strings"
)

// EventID = "<block_height padded to 10>-<block_hash prefix 5>-<event_index padded to 6>"
func MakeEventID(height uint64, blockHash string, index uint32) string {
	hash := strings.TrimPrefix(strings.ToLower(blockHash), "0x")
	if len(hash) > 5 {
		hash = hash[:5]
	}
	return fmt.Sprintf("%010d-%s-%06d", height, hash, index)
}
