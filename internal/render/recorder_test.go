package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type fakeRecordDevice struct {
	calls []string

	beginErr       error
	beginPassErr   error
	endErr         error
	beginPassInfo  core1_0.RenderPassBeginInfo
	viewports      []core1_0.Viewport
	scissors       []core1_0.Rect2D
	drawArgs       [4]int
	boundBindPoint core1_0.PipelineBindPoint
}

func (d *fakeRecordDevice) BeginCommandBuffer(buffer core1_0.CommandBuffer, o core1_0.CommandBufferBeginInfo) (common.VkResult, error) {
	d.calls = append(d.calls, "begin")
	return core1_0.VKSuccess, d.beginErr
}

func (d *fakeRecordDevice) EndCommandBuffer(buffer core1_0.CommandBuffer) (common.VkResult, error) {
	d.calls = append(d.calls, "end")
	return core1_0.VKSuccess, d.endErr
}

func (d *fakeRecordDevice) CmdBeginRenderPass(buffer core1_0.CommandBuffer, contents core1_0.SubpassContents, o core1_0.RenderPassBeginInfo) error {
	d.calls = append(d.calls, "beginRenderPass")
	d.beginPassInfo = o
	return d.beginPassErr
}

func (d *fakeRecordDevice) CmdEndRenderPass(buffer core1_0.CommandBuffer) {
	d.calls = append(d.calls, "endRenderPass")
}

func (d *fakeRecordDevice) CmdBindPipeline(buffer core1_0.CommandBuffer, bindPoint core1_0.PipelineBindPoint, pipeline core1_0.Pipeline) {
	d.calls = append(d.calls, "bindPipeline")
	d.boundBindPoint = bindPoint
}

func (d *fakeRecordDevice) CmdSetViewport(buffer core1_0.CommandBuffer, viewports ...core1_0.Viewport) {
	d.calls = append(d.calls, "setViewport")
	d.viewports = viewports
}

func (d *fakeRecordDevice) CmdSetScissor(buffer core1_0.CommandBuffer, scissors ...core1_0.Rect2D) {
	d.calls = append(d.calls, "setScissor")
	d.scissors = scissors
}

func (d *fakeRecordDevice) CmdDraw(buffer core1_0.CommandBuffer, vertexCount, instanceCount int, firstVertex, firstInstance uint32) {
	d.calls = append(d.calls, "draw")
	d.drawArgs = [4]int{vertexCount, instanceCount, int(firstVertex), int(firstInstance)}
}

func TestRecordEmitsFullSequence(t *testing.T) {
	device := &fakeRecordDevice{}
	recorder := &Recorder{device: device}
	extent := core1_0.Extent2D{Width: 800, Height: 600}

	require.NoError(t, recorder.Record(core1_0.CommandBuffer{}, core1_0.Framebuffer{}, extent))

	require.Equal(t, []string{
		"begin", "beginRenderPass", "bindPipeline",
		"setViewport", "setScissor", "draw",
		"endRenderPass", "end",
	}, device.calls)
	require.Equal(t, core1_0.PipelineBindPointGraphics, device.boundBindPoint)
	require.Equal(t, [4]int{3, 1, 0, 0}, device.drawArgs)
}

func TestRecordCoversCurrentExtent(t *testing.T) {
	device := &fakeRecordDevice{}
	recorder := &Recorder{device: device}
	extent := core1_0.Extent2D{Width: 1280, Height: 720}

	require.NoError(t, recorder.Record(core1_0.CommandBuffer{}, core1_0.Framebuffer{}, extent))

	// Render area, viewport, and scissor all track the extent passed in,
	// not a size captured at construction.
	require.Equal(t, extent, device.beginPassInfo.RenderArea.Extent)
	require.Equal(t, core1_0.Offset2D{X: 0, Y: 0}, device.beginPassInfo.RenderArea.Offset)
	require.Equal(t, []core1_0.ClearValue{clearColor}, device.beginPassInfo.ClearValues)

	require.Len(t, device.viewports, 1)
	require.Equal(t, float32(1280), device.viewports[0].Width)
	require.Equal(t, float32(720), device.viewports[0].Height)
	require.Equal(t, float32(0), device.viewports[0].MinDepth)
	require.Equal(t, float32(1), device.viewports[0].MaxDepth)

	require.Len(t, device.scissors, 1)
	require.Equal(t, extent, device.scissors[0].Extent)
}

func TestRecordPropagatesBeginFailure(t *testing.T) {
	device := &fakeRecordDevice{beginErr: errors.New("device lost")}
	recorder := &Recorder{device: device}

	err := recorder.Record(core1_0.CommandBuffer{}, core1_0.Framebuffer{}, core1_0.Extent2D{Width: 800, Height: 600})
	require.Error(t, err)
	// Nothing after the failed begin runs.
	require.Equal(t, []string{"begin"}, device.calls)
}

func TestRecordPropagatesRenderPassFailure(t *testing.T) {
	device := &fakeRecordDevice{beginPassErr: errors.New("device lost")}
	recorder := &Recorder{device: device}

	err := recorder.Record(core1_0.CommandBuffer{}, core1_0.Framebuffer{}, core1_0.Extent2D{Width: 800, Height: 600})
	require.Error(t, err)
	require.Equal(t, []string{"begin", "beginRenderPass"}, device.calls)
}

func TestRecordPropagatesEndFailure(t *testing.T) {
	device := &fakeRecordDevice{endErr: errors.New("device lost")}
	recorder := &Recorder{device: device}

	err := recorder.Record(core1_0.CommandBuffer{}, core1_0.Framebuffer{}, core1_0.Extent2D{Width: 800, Height: 600})
	require.Error(t, err)
}

func TestBytesToBytecodePacksLittleEndianWords(t *testing.T) {
	words := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.Equal(t, []uint32{0x07230203, 0x00010000}, words)
}
