package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// clearColor is the fixed color every frame starts from.
var clearColor = core1_0.ClearValueFloat{0.0, 0.0, 0.0, 1.0}

// recordDevice is the slice of the device driver the recorder uses.
// Narrow on purpose: tests substitute a fake that logs the call sequence.
type recordDevice interface {
	BeginCommandBuffer(buffer core1_0.CommandBuffer, o core1_0.CommandBufferBeginInfo) (common.VkResult, error)
	EndCommandBuffer(buffer core1_0.CommandBuffer) (common.VkResult, error)
	CmdBeginRenderPass(buffer core1_0.CommandBuffer, contents core1_0.SubpassContents, o core1_0.RenderPassBeginInfo) error
	CmdEndRenderPass(buffer core1_0.CommandBuffer)
	CmdBindPipeline(buffer core1_0.CommandBuffer, bindPoint core1_0.PipelineBindPoint, pipeline core1_0.Pipeline)
	CmdSetViewport(buffer core1_0.CommandBuffer, viewports ...core1_0.Viewport)
	CmdSetScissor(buffer core1_0.CommandBuffer, scissors ...core1_0.Rect2D)
	CmdDraw(buffer core1_0.CommandBuffer, vertexCount, instanceCount int, firstVertex, firstInstance uint32)
}

// Recorder emits the fixed draw sequence for one frame into a command
// buffer that has already been reset.
type Recorder struct {
	device     recordDevice
	renderPass core1_0.RenderPass
	pipeline   core1_0.Pipeline
}

// NewRecorder builds a recorder over the shared render pass and pipeline.
func NewRecorder(ctx *Context, resources *Resources) *Recorder {
	return &Recorder{
		device:     ctx.deviceDriver,
		renderPass: resources.renderPass,
		pipeline:   resources.pipeline,
	}
}

// Record writes the full frame: clear, bind, viewport/scissor to the
// current extent, one 3-vertex draw. Only beginning and ending the buffer
// can fail; errors are propagated for the scheduler to log.
func (r *Recorder) Record(buffer core1_0.CommandBuffer, framebuffer core1_0.Framebuffer, extent core1_0.Extent2D) error {
	_, err := r.device.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return errors.Wrap(err, "beginning command buffer")
	}

	err = r.device.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  r.renderPass,
			Framebuffer: framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				clearColor,
			},
		})
	if err != nil {
		return errors.Wrap(err, "beginning render pass")
	}

	r.device.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, r.pipeline)

	r.device.CmdSetViewport(buffer, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	r.device.CmdSetScissor(buffer, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})

	r.device.CmdDraw(buffer, 3, 1, 0, 0)
	r.device.CmdEndRenderPass(buffer)

	_, err = r.device.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "ending command buffer")
	}

	return nil
}
