package platform

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// Window wraps the SDL window used as the presentation surface. All methods
// must be called from the thread that created the window.
type Window struct {
	window *sdl.Window
}

// NewWindow initializes SDL video and creates a resizable Vulkan-capable
// window of the requested size.
func NewWindow(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initializing sdl video")
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, errors.Wrap(err, "creating sdl window")
	}

	return &Window{window: window}, nil
}

// SDL exposes the underlying window for surface creation.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

// DrawableSize reports the window's framebuffer size in pixels. Returns
// (0, 0) while the window is fully minimized.
func (w *Window) DrawableSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

// Minimized reports whether the window is currently iconified.
func (w *Window) Minimized() bool {
	return (w.window.GetFlags() & sdl.WINDOW_MINIMIZED) != 0
}

// WaitEvent blocks until the window system delivers an event, then discards
// it. Callers re-poll window state afterwards instead of inspecting the
// event.
func (w *Window) WaitEvent() {
	sdl.WaitEvent()
}

// InstanceExtensions lists the Vulkan instance extensions the window system
// requires for surface creation.
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// Destroy tears down the window and shuts SDL down.
func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
