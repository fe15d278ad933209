package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veandco/go-sdl2/sdl"
)

func TestTranslateQuit(t *testing.T) {
	event, ok := Translate(&sdl.QuitEvent{Type: sdl.QUIT})
	require.True(t, ok)
	require.Equal(t, EventQuit, event.Kind)
}

func TestTranslateWindowEvents(t *testing.T) {
	tests := []struct {
		name     string
		sdlEvent sdl.Event
		want     Event
	}{
		{
			name:     "minimized",
			sdlEvent: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_MINIMIZED},
			want:     Event{Kind: EventMinimized},
		},
		{
			name:     "restored",
			sdlEvent: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESTORED},
			want:     Event{Kind: EventRestored},
		},
		{
			name:     "resized",
			sdlEvent: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESIZED, Data1: 1024, Data2: 768},
			want:     Event{Kind: EventResized, Width: 1024, Height: 768},
		},
		{
			name:     "resized to zero area",
			sdlEvent: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_SIZE_CHANGED, Data1: 0, Data2: 0},
			want:     Event{Kind: EventResized, Width: 0, Height: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := Translate(tt.sdlEvent)
			require.True(t, ok)
			require.Equal(t, tt.want.Kind, event.Kind)
			require.Equal(t, tt.want.Width, event.Width)
			require.Equal(t, tt.want.Height, event.Height)
		})
	}
}

func TestTranslateDropsIrrelevantEvents(t *testing.T) {
	_, ok := Translate(&sdl.KeyboardEvent{Type: sdl.KEYDOWN})
	require.False(t, ok)

	_, ok = Translate(&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_FOCUS_GAINED})
	require.False(t, ok)
}
