package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeatStatus(t *testing.T) {
	tests := []struct {
		name     string
		glyph    string
		done     int
		total    int
		step     string
		progress string
		want     string
	}{
		{
			name:  "single item",
			glyph: "⏳",
			total: 1,
			want:  "⏳ Generating",
		},
		{
			name:  "batch before first completion hides progress",
			glyph: "⏳",
			done:  0,
			total: 3,
			want:  "⏳ Generating",
		},
		{
			name:  "batch after first completion shows progress",
			glyph: "⌛",
			done:  1,
			total: 3,
			want:  "⌛ Generating (1/3 done)",
		},
		{
			name:  "step without progress",
			glyph: "⏳",
			total: 1,
			step:  "KSampler",
			want:  "⏳ Generating\nCurrent step: KSampler",
		},
		{
			name:     "step with progress",
			glyph:    "⏳",
			done:     2,
			total:    4,
			step:     "KSampler",
			progress: "50%",
			want:     "⏳ Generating (2/4 done)\nCurrent step: KSampler - 50%",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, heartbeatStatus(tt.glyph, tt.done, tt.total, tt.step, tt.progress))
		})
	}
}
