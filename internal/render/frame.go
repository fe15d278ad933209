package render

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// frameDevice is the slice of the device driver the scheduler uses per
// frame.
type frameDevice interface {
	WaitForFences(waitForAll bool, timeout time.Duration, fences ...core1_0.Fence) (common.VkResult, error)
	ResetFences(fences ...core1_0.Fence) (common.VkResult, error)
	ResetCommandBuffer(buffer core1_0.CommandBuffer, flags core1_0.CommandBufferResetFlags) (common.VkResult, error)
	QueueSubmit(queue core1_0.Queue, fence *core1_0.Fence, submits ...core1_0.SubmitInfo) (common.VkResult, error)
}

// presentDevice is the slice of the swapchain extension the scheduler uses.
type presentDevice interface {
	AcquireNextImage(swapchain khr_swapchain.Swapchain, timeout time.Duration, semaphore *core1_0.Semaphore, fence *core1_0.Fence) (int, common.VkResult, error)
	QueuePresent(queue core1_0.Queue, o khr_swapchain.PresentInfo) (common.VkResult, error)
}

// presentable is what the scheduler needs from the swapchain: the live
// handle, the framebuffer for an acquired image, the current extent, and a
// rebuild when the surface goes stale.
type presentable interface {
	Handle() khr_swapchain.Swapchain
	Framebuffer(index int) core1_0.Framebuffer
	Extent() core1_0.Extent2D
	Recreate() error
}

// commandRecorder fills a reset command buffer with one frame's commands.
type commandRecorder interface {
	Record(buffer core1_0.CommandBuffer, framebuffer core1_0.Framebuffer, extent core1_0.Extent2D) error
}

// frameSlot is one frame's worth of synchronization state. A slot may back
// at most one outstanding submission; the in-flight fence gates reuse.
type frameSlot struct {
	commandBuffer  core1_0.CommandBuffer
	imageAvailable core1_0.Semaphore
	renderFinished core1_0.Semaphore
	inFlight       core1_0.Fence
}

// Scheduler drives the per-frame acquire → record → submit → present cycle
// over a fixed ring of frame slots. The slot count is independent of the
// swapchain image count and never changes after setup.
type Scheduler struct {
	ctx *Context

	device   frameDevice
	chainAPI presentDevice
	chain    presentable
	recorder commandRecorder

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	slots        [maxFramesInFlight]frameSlot
	currentFrame int
	resizeNeeded bool
}

// NewScheduler allocates the command buffers and sync objects for every
// slot. Fences start signaled so the first wait on each slot passes.
func NewScheduler(ctx *Context, chain *Chain, recorder *Recorder) (*Scheduler, error) {
	s := &Scheduler{
		ctx:           ctx,
		device:        ctx.deviceDriver,
		chainAPI:      ctx.swapchainExtension,
		chain:         chain,
		recorder:      recorder,
		graphicsQueue: ctx.graphicsQueue,
		presentQueue:  ctx.presentQueue,
	}

	buffers, _, err := ctx.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        ctx.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: maxFramesInFlight,
	})
	if err != nil {
		return s, setupFailure(err, "allocating frame command buffers")
	}

	for i := 0; i < maxFramesInFlight; i++ {
		s.slots[i].commandBuffer = buffers[i]

		s.slots[i].imageAvailable, _, err = ctx.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return s, setupFailure(err, "creating image-available semaphore")
		}

		s.slots[i].renderFinished, _, err = ctx.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return s, setupFailure(err, "creating render-finished semaphore")
		}

		s.slots[i].inFlight, _, err = ctx.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return s, setupFailure(err, "creating in-flight fence")
		}
	}

	return s, nil
}

// NotifyResize raises the resize signal. It is consumed (and cleared) at
// the present step of the next frame cycle.
func (s *Scheduler) NotifyResize() {
	s.resizeNeeded = true
}

// DrawFrame runs one full frame cycle on the current slot. Surface
// staleness triggers swapchain recreation and is not an error; every other
// per-frame failure is logged and the loop carries on. The returned error
// is reserved for a failed recreation, which the renderer cannot recover
// from.
func (s *Scheduler) DrawFrame() error {
	slot := &s.slots[s.currentFrame]

	// The previous submission on this slot must have fully retired before
	// any of its state can be touched.
	_, err := s.device.WaitForFences(true, common.NoTimeout, slot.inFlight)
	if err != nil {
		log.Printf("warning: waiting for frame fence: %+v", err)
		return nil
	}

	imageIndex, res, err := s.chainAPI.AcquireNextImage(s.chain.Handle(), common.NoTimeout, &slot.imageAvailable, nil)
	if staleSurface(res) {
		// The frame never started: the fence stays signaled and the frame
		// index stays put.
		return errors.Wrap(s.chain.Recreate(), "recreating swapchain after stale acquire")
	}
	if err != nil && !suboptimalSurface(res) {
		log.Printf("warning: acquiring swapchain image: %+v", err)
	}

	// Only reset after a usable acquire; the stale path above must leave
	// the slot untouched.
	_, err = s.device.ResetFences(slot.inFlight)
	if err != nil {
		log.Printf("warning: resetting frame fence: %+v", err)
		return nil
	}

	_, err = s.device.ResetCommandBuffer(slot.commandBuffer, 0)
	if err != nil {
		log.Printf("warning: resetting command buffer: %+v", err)
		s.resignal(slot)
		s.advance()
		return nil
	}

	err = s.recorder.Record(slot.commandBuffer, s.chain.Framebuffer(imageIndex), s.chain.Extent())
	if err != nil {
		log.Printf("warning: recording frame: %+v", err)
		s.resignal(slot)
		s.advance()
		return nil
	}

	_, err = s.device.QueueSubmit(s.graphicsQueue, &slot.inFlight, core1_0.SubmitInfo{
		WaitSemaphores:   []core1_0.Semaphore{slot.imageAvailable},
		WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []core1_0.CommandBuffer{slot.commandBuffer},
		SignalSemaphores: []core1_0.Semaphore{slot.renderFinished},
	})
	if err != nil {
		log.Printf("warning: submitting frame: %+v", err)
		s.resignal(slot)
		s.advance()
		return nil
	}

	res, err = s.chainAPI.QueuePresent(s.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{slot.renderFinished},
		Swapchains:     []khr_swapchain.Swapchain{s.chain.Handle()},
		ImageIndices:   []int{imageIndex},
	})

	var recreateErr error
	if staleSurface(res) || suboptimalSurface(res) || s.resizeNeeded {
		s.resizeNeeded = false
		recreateErr = errors.Wrap(s.chain.Recreate(), "recreating swapchain after present")
	} else if err != nil {
		log.Printf("warning: presenting frame: %+v", err)
	}

	// The frame was submitted, so the index advances even when present
	// reported a stale surface.
	s.advance()
	return recreateErr
}

func (s *Scheduler) advance() {
	s.currentFrame = (s.currentFrame + 1) % maxFramesInFlight
}

// resignal submits an empty batch that signals the slot's fence. An
// aborted frame has already reset the fence; without this the next pass
// over the slot would wait on it forever.
func (s *Scheduler) resignal(slot *frameSlot) {
	_, err := s.device.QueueSubmit(s.graphicsQueue, &slot.inFlight)
	if err != nil {
		log.Printf("warning: re-signaling frame fence: %+v", err)
	}
}

// Destroy releases every slot's sync objects. The command buffers go down
// with the pool.
func (s *Scheduler) Destroy() {
	if s.ctx == nil {
		return
	}

	for i := range s.slots {
		if s.slots[i].inFlight.Initialized() {
			s.ctx.deviceDriver.DestroyFence(s.slots[i].inFlight, nil)
			s.slots[i].inFlight = core1_0.Fence{}
		}
		if s.slots[i].renderFinished.Initialized() {
			s.ctx.deviceDriver.DestroySemaphore(s.slots[i].renderFinished, nil)
			s.slots[i].renderFinished = core1_0.Semaphore{}
		}
		if s.slots[i].imageAvailable.Initialized() {
			s.ctx.deviceDriver.DestroySemaphore(s.slots[i].imageAvailable, nil)
			s.slots[i].imageAvailable = core1_0.Semaphore{}
		}
	}
}
