package render

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type acquireOutcome struct {
	index int
	res   common.VkResult
	err   error
}

type fakeFrameDevice struct {
	ops *[]string

	waitErr        error
	resetFenceErr  error
	resetBufferErr error
	submitErr      error

	submittedFences []*core1_0.Fence
}

func (d *fakeFrameDevice) WaitForFences(waitForAll bool, timeout time.Duration, fences ...core1_0.Fence) (common.VkResult, error) {
	*d.ops = append(*d.ops, "wait")
	return core1_0.VKSuccess, d.waitErr
}

func (d *fakeFrameDevice) ResetFences(fences ...core1_0.Fence) (common.VkResult, error) {
	*d.ops = append(*d.ops, "resetFences")
	return core1_0.VKSuccess, d.resetFenceErr
}

func (d *fakeFrameDevice) ResetCommandBuffer(buffer core1_0.CommandBuffer, flags core1_0.CommandBufferResetFlags) (common.VkResult, error) {
	*d.ops = append(*d.ops, "resetBuffer")
	return core1_0.VKSuccess, d.resetBufferErr
}

func (d *fakeFrameDevice) QueueSubmit(queue core1_0.Queue, fence *core1_0.Fence, submits ...core1_0.SubmitInfo) (common.VkResult, error) {
	if len(submits) == 0 {
		*d.ops = append(*d.ops, "resignal")
		return core1_0.VKSuccess, nil
	}
	*d.ops = append(*d.ops, "submit")
	d.submittedFences = append(d.submittedFences, fence)
	return core1_0.VKSuccess, d.submitErr
}

type fakeChainAPI struct {
	ops *[]string

	acquires       []acquireOutcome
	acquireCalls   int
	acquireSems    []*core1_0.Semaphore
	presentResults []common.VkResult
	presentCalls   int
	presentedIdx   []int
}

func (a *fakeChainAPI) AcquireNextImage(swapchain khr_swapchain.Swapchain, timeout time.Duration, semaphore *core1_0.Semaphore, fence *core1_0.Fence) (int, common.VkResult, error) {
	*a.ops = append(*a.ops, "acquire")
	a.acquireSems = append(a.acquireSems, semaphore)

	outcome := acquireOutcome{res: core1_0.VKSuccess}
	if a.acquireCalls < len(a.acquires) {
		outcome = a.acquires[a.acquireCalls]
	}
	a.acquireCalls++
	return outcome.index, outcome.res, outcome.err
}

func (a *fakeChainAPI) QueuePresent(queue core1_0.Queue, o khr_swapchain.PresentInfo) (common.VkResult, error) {
	*a.ops = append(*a.ops, "present")
	a.presentedIdx = append(a.presentedIdx, o.ImageIndices...)

	res := common.VkResult(core1_0.VKSuccess)
	if a.presentCalls < len(a.presentResults) {
		res = a.presentResults[a.presentCalls]
	}
	a.presentCalls++
	if res == khr_swapchain.VKErrorOutOfDate {
		return res, errors.New("out of date")
	}
	return res, nil
}

type fakeChain struct {
	ops *[]string

	recreates   int
	recreateErr error
	framebuffer []int
}

func (c *fakeChain) Handle() khr_swapchain.Swapchain { return khr_swapchain.Swapchain{} }

func (c *fakeChain) Framebuffer(index int) core1_0.Framebuffer {
	c.framebuffer = append(c.framebuffer, index)
	return core1_0.Framebuffer{}
}

func (c *fakeChain) Extent() core1_0.Extent2D {
	return core1_0.Extent2D{Width: 800, Height: 600}
}

func (c *fakeChain) Recreate() error {
	*c.ops = append(*c.ops, "recreate")
	c.recreates++
	return c.recreateErr
}

type fakeFrameRecorder struct {
	ops *[]string
	err error
}

func (r *fakeFrameRecorder) Record(buffer core1_0.CommandBuffer, framebuffer core1_0.Framebuffer, extent core1_0.Extent2D) error {
	*r.ops = append(*r.ops, "record")
	return r.err
}

type schedulerFixture struct {
	scheduler *Scheduler
	device    *fakeFrameDevice
	chainAPI  *fakeChainAPI
	chain     *fakeChain
	recorder  *fakeFrameRecorder
	ops       []string
}

func newSchedulerFixture() *schedulerFixture {
	f := &schedulerFixture{}
	f.device = &fakeFrameDevice{ops: &f.ops}
	f.chainAPI = &fakeChainAPI{ops: &f.ops}
	f.chain = &fakeChain{ops: &f.ops}
	f.recorder = &fakeFrameRecorder{ops: &f.ops}
	f.scheduler = &Scheduler{
		device:   f.device,
		chainAPI: f.chainAPI,
		chain:    f.chain,
		recorder: f.recorder,
	}
	return f
}

func TestDrawFrameRunsFullCycleInOrder(t *testing.T) {
	f := newSchedulerFixture()

	require.NoError(t, f.scheduler.DrawFrame())
	require.Equal(t,
		[]string{"wait", "acquire", "resetFences", "resetBuffer", "record", "submit", "present"},
		f.ops)
	require.Equal(t, 1, f.scheduler.currentFrame)
}

func TestDrawFrameAlternatesSlots(t *testing.T) {
	f := newSchedulerFixture()

	for i := 0; i < 4; i++ {
		require.NoError(t, f.scheduler.DrawFrame())
	}

	require.Equal(t, 0, f.scheduler.currentFrame)

	// Each slot's image-available semaphore is identified by address; the
	// ring must hand out slot 0, slot 1, slot 0, slot 1.
	sems := f.chainAPI.acquireSems
	require.Len(t, sems, 4)
	require.NotSame(t, sems[0], sems[1])
	require.Same(t, sems[0], sems[2])
	require.Same(t, sems[1], sems[3])

	// Likewise for the fence handed to each submission.
	fences := f.device.submittedFences
	require.Len(t, fences, 4)
	require.NotSame(t, fences[0], fences[1])
	require.Same(t, fences[0], fences[2])
}

func TestDrawFrameFenceDisciplinePerCycle(t *testing.T) {
	f := newSchedulerFixture()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.scheduler.DrawFrame())
	}

	// Every cycle waits on the slot fence and resets it before the one
	// submit that rearms it; no cycle submits without having waited first.
	perFrame := len(f.ops) / 3
	for i := 0; i < 3; i++ {
		cycle := f.ops[i*perFrame : (i+1)*perFrame]
		require.Equal(t, []string{"wait", "acquire", "resetFences", "resetBuffer", "record", "submit", "present"}, cycle)
	}
}

func TestDrawFrameStaleAcquireAbortsWithoutAdvancing(t *testing.T) {
	f := newSchedulerFixture()
	f.chainAPI.acquires = []acquireOutcome{
		{res: khr_swapchain.VKErrorOutOfDate, err: errors.New("out of date")},
	}

	require.NoError(t, f.scheduler.DrawFrame())

	// Recreation runs, and nothing else: the fence is never reset, nothing
	// is submitted or presented, and the frame index stays put.
	require.Equal(t, []string{"wait", "acquire", "recreate"}, f.ops)
	require.Equal(t, 0, f.scheduler.currentFrame)
	require.Equal(t, 1, f.chain.recreates)
}

func TestDrawFrameSuboptimalAcquireProceeds(t *testing.T) {
	f := newSchedulerFixture()
	f.chainAPI.acquires = []acquireOutcome{
		{res: khr_swapchain.VKSuboptimal},
	}

	require.NoError(t, f.scheduler.DrawFrame())

	// A suboptimal image is still presentable; recreation waits for the
	// present step's verdict.
	require.Equal(t,
		[]string{"wait", "acquire", "resetFences", "resetBuffer", "record", "submit", "present"},
		f.ops)
	require.Zero(t, f.chain.recreates)
}

func TestDrawFrameSuboptimalPresentRecreatesAndAdvances(t *testing.T) {
	f := newSchedulerFixture()
	f.chainAPI.presentResults = []common.VkResult{khr_swapchain.VKSuboptimal}

	require.NoError(t, f.scheduler.DrawFrame())

	require.Equal(t,
		[]string{"wait", "acquire", "resetFences", "resetBuffer", "record", "submit", "present", "recreate"},
		f.ops)
	require.Equal(t, 1, f.scheduler.currentFrame)
}

func TestDrawFrameStalePresentRecreatesAndAdvances(t *testing.T) {
	f := newSchedulerFixture()
	f.chainAPI.presentResults = []common.VkResult{khr_swapchain.VKErrorOutOfDate}

	require.NoError(t, f.scheduler.DrawFrame())

	require.Equal(t, 1, f.chain.recreates)
	require.Equal(t, 1, f.scheduler.currentFrame)
}

func TestDrawFrameConsumesResizeSignal(t *testing.T) {
	f := newSchedulerFixture()
	f.scheduler.NotifyResize()

	require.NoError(t, f.scheduler.DrawFrame())
	require.Equal(t, 1, f.chain.recreates)
	require.False(t, f.scheduler.resizeNeeded)

	// Cleared: the next clean frame must not recreate again.
	require.NoError(t, f.scheduler.DrawFrame())
	require.Equal(t, 1, f.chain.recreates)
}

func TestDrawFrameRecordFailureResignalsFence(t *testing.T) {
	f := newSchedulerFixture()
	f.recorder.err = errors.New("begin failed")

	require.NoError(t, f.scheduler.DrawFrame())

	// The fence was reset before recording, so the aborted frame must
	// re-arm it or the next pass over this slot waits forever.
	require.Equal(t,
		[]string{"wait", "acquire", "resetFences", "resetBuffer", "record", "resignal"},
		f.ops)
	require.Equal(t, 1, f.scheduler.currentFrame)
	require.Zero(t, f.chainAPI.presentCalls)
}

func TestDrawFramePresentsAcquiredImageIndex(t *testing.T) {
	f := newSchedulerFixture()
	f.chainAPI.acquires = []acquireOutcome{{index: 2, res: core1_0.VKSuccess}}

	require.NoError(t, f.scheduler.DrawFrame())

	require.Equal(t, []int{2}, f.chain.framebuffer)
	require.Equal(t, []int{2}, f.chainAPI.presentedIdx)
}

func TestDrawFrameRecreateFailureIsFatal(t *testing.T) {
	f := newSchedulerFixture()
	f.chain.recreateErr = errors.New("device lost")
	f.chainAPI.acquires = []acquireOutcome{
		{res: khr_swapchain.VKErrorOutOfDate, err: errors.New("out of date")},
	}

	require.Error(t, f.scheduler.DrawFrame())
}
