package render

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"

	"vktriangle/internal/platform"
)

// App wires the window, the device context, the swapchain, and the frame
// scheduler together and drives them from a single goroutine.
type App struct {
	window *platform.Window
	pump   platform.Pump

	ctx       *Context
	chain     *Chain
	resources *Resources
	recorder  *Recorder
	scheduler *Scheduler
}

// Run opens the window, brings the renderer up, and loops until the window
// is closed. Teardown runs unconditionally, in reverse creation order, even
// when initialization fails partway.
func Run() error {
	app := &App{}
	defer app.cleanup()

	window, err := platform.NewWindow(windowTitle, windowWidth, windowHeight)
	if err != nil {
		return setupFailure(err, "creating window")
	}
	app.window = window

	err = app.initVulkan()
	if err != nil {
		return err
	}

	return app.mainLoop()
}

// initVulkan builds the rendering stack bottom-up. Constructors hand back
// their partially-built object even on failure so cleanup can release it.
func (a *App) initVulkan() error {
	ctx, err := NewContext(a.window)
	a.ctx = ctx
	if err != nil {
		return err
	}

	a.chain, err = NewChain(ctx)
	if err != nil {
		return err
	}

	a.resources, err = NewResources(ctx, a.chain.Format())
	if err != nil {
		return err
	}

	// The render pass needs the chain's format, and the chain's framebuffers
	// need the render pass, so framebuffer creation is deferred to here.
	err = a.chain.AttachRenderPass(a.resources.RenderPass())
	if err != nil {
		return err
	}

	a.recorder = NewRecorder(ctx, a.resources)

	a.scheduler, err = NewScheduler(ctx, a.chain, a.recorder)
	return err
}

func (a *App) mainLoop() error {
	rendering := true
	frames := 0
	start := hrtime.Now()

appLoop:
	for {
		for _, event := range a.pump.Poll() {
			if a.handle(event, &rendering) {
				break appLoop
			}
		}

		// While paused, block on the event queue instead of spinning.
		if !rendering {
			event, ok := a.pump.Wait()
			if ok && a.handle(event, &rendering) {
				break appLoop
			}
			continue
		}

		err := a.scheduler.DrawFrame()
		if err != nil {
			return err
		}
		frames++
	}

	elapsed := hrtime.Since(start)
	if frames > 0 {
		log.Printf("rendered %d frames in %v (%v per frame)", frames, elapsed.Round(time.Millisecond), (elapsed / time.Duration(frames)).Round(time.Microsecond))
	}

	// Nothing may still be executing when teardown starts.
	return errors.Wrap(a.ctx.WaitIdle(), "waiting for device on shutdown")
}

// handle folds one window event into the loop state and reports whether the
// loop should end.
func (a *App) handle(event platform.Event, rendering *bool) bool {
	switch event.Kind {
	case platform.EventQuit:
		return true

	case platform.EventMinimized:
		*rendering = false

	case platform.EventRestored:
		// A size change on restore arrives as its own resize event; a stale
		// surface shows up at the next acquire regardless.
		*rendering = true

	case platform.EventResized:
		if event.Width > 0 && event.Height > 0 {
			*rendering = true
			a.scheduler.NotifyResize()
		} else {
			*rendering = false
		}
	}

	return false
}

func (a *App) cleanup() {
	if a.scheduler != nil {
		a.scheduler.Destroy()
	}
	if a.chain != nil {
		a.chain.Destroy()
	}
	if a.resources != nil && a.ctx != nil {
		a.resources.Destroy(a.ctx)
	}
	if a.ctx != nil {
		a.ctx.Destroy()
	}
	if a.window != nil {
		a.window.Destroy()
	}
}
