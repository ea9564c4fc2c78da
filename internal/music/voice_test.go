package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardForGuild(t *testing.T) {
	// snowflakes built as (n << 22) + low bits so the shard index is readable
	tests := []struct {
		name       string
		guildID    string
		shardCount int
		want       int
	}{
		{"single shard", "20971643", 1, 0},
		{"two shards", "20971643", 2, 1},   // (5 << 22) + 123
		{"three shards", "20971643", 3, 2}, // 5 % 3
		{"four shards", "20971643", 4, 1},  // 5 % 4
		{"shard zero guild", "123", 4, 0},
		{"unparseable falls back to zero", "not-a-snowflake", 4, 0},
		{"zero shard count", "20971643", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shardForGuild(tt.guildID, tt.shardCount))
		})
	}
}
