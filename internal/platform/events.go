package platform

import (
	"time"

	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
)

// EventKind identifies a window-system event the render loop cares about.
type EventKind int

const (
	EventNone EventKind = iota
	// EventQuit ends the main loop.
	EventQuit
	// EventResized carries the new window size. A zero size means the
	// drawable area collapsed and rendering must pause.
	EventResized
	// EventMinimized pauses rendering until EventRestored.
	EventMinimized
	EventRestored
)

// Event is one translated window-system event. When is a monotonic
// timestamp taken at translation time.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
	When   time.Duration
}

// Pump drains the window system's event queue and hands back typed events
// in arrival order. The render loop polls it once per iteration instead of
// reacting to callbacks.
type Pump struct{}

// Poll translates every pending SDL event. Events with no bearing on
// rendering are dropped.
func (p *Pump) Poll() []Event {
	var events []Event
	for sdlEvent := sdl.PollEvent(); sdlEvent != nil; sdlEvent = sdl.PollEvent() {
		event, ok := Translate(sdlEvent)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events
}

// Wait blocks until the window system delivers an event and translates it.
// The second return is false when the event has no bearing on rendering.
func (p *Pump) Wait() (Event, bool) {
	sdlEvent := sdl.WaitEvent()
	if sdlEvent == nil {
		return Event{}, false
	}
	return Translate(sdlEvent)
}

// Translate maps a single SDL event onto an Event. The second return is
// false for events the renderer ignores.
func Translate(sdlEvent sdl.Event) (Event, bool) {
	switch e := sdlEvent.(type) {
	case *sdl.QuitEvent:
		return Event{Kind: EventQuit, When: hrtime.Now()}, true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			return Event{Kind: EventMinimized, When: hrtime.Now()}, true
		case sdl.WINDOWEVENT_RESTORED:
			return Event{Kind: EventRestored, When: hrtime.Now()}, true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			return Event{
				Kind:   EventResized,
				Width:  int(e.Data1),
				Height: int(e.Data2),
				When:   hrtime.Now(),
			}, true
		}
	}
	return Event{}, false
}
