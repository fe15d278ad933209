package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFamilyIndicesIsComplete(t *testing.T) {
	graphics, present := 0, 1

	tests := []struct {
		name    string
		indices QueueFamilyIndices
		want    bool
	}{
		{"both missing", QueueFamilyIndices{}, false},
		{"graphics only", QueueFamilyIndices{GraphicsFamily: &graphics}, false},
		{"present only", QueueFamilyIndices{PresentFamily: &present}, false},
		{"both found", QueueFamilyIndices{GraphicsFamily: &graphics, PresentFamily: &present}, true},
		{"same family", QueueFamilyIndices{GraphicsFamily: &graphics, PresentFamily: &graphics}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.indices.IsComplete())
		})
	}
}
