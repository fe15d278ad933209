package render

import (
	"bytes"
	"embed"
	"encoding/binary"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

//go:embed shaders
var shaderFS embed.FS

// bytesToBytecode packs a SPIR-V blob into the little-endian words the API
// consumes. The blob is treated as opaque beyond the word repack.
func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

// Resources are the immutable render pass and graphics pipeline, created
// once from fixed configuration and the embedded shader bytecode. They do
// not depend on the swapchain extent (viewport and scissor are dynamic) and
// survive swapchain recreation untouched.
type Resources struct {
	renderPass     core1_0.RenderPass
	pipelineLayout core1_0.PipelineLayout
	pipeline       core1_0.Pipeline
}

// NewResources builds the render pass and pipeline against the swapchain's
// image format.
func NewResources(ctx *Context, format core1_0.Format) (*Resources, error) {
	r := &Resources{}

	err := r.createRenderPass(ctx, format)
	if err != nil {
		return r, setupFailure(err, "creating render pass")
	}

	err = r.createGraphicsPipeline(ctx)
	if err != nil {
		return r, setupFailure(err, "creating graphics pipeline")
	}

	return r, nil
}

func (r *Resources) createRenderPass(ctx *Context, format core1_0.Format) error {
	renderPass, _, err := ctx.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return err
	}

	r.renderPass = renderPass

	return nil
}

func (r *Resources) loadShaderModule(ctx *Context, path string) (core1_0.ShaderModule, error) {
	shaderBytes, err := shaderFS.ReadFile(path)
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrapf(err, "reading %s", path)
	}

	shader, _, err := ctx.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(shaderBytes),
	})
	return shader, err
}

func (r *Resources) createGraphicsPipeline(ctx *Context) error {
	vertShader, err := r.loadShaderModule(ctx, "shaders/vert.spv")
	if err != nil {
		return err
	}
	defer ctx.deviceDriver.DestroyShaderModule(vertShader, nil)

	fragShader, err := r.loadShaderModule(ctx, "shaders/frag.spv")
	if err != nil {
		return err
	}
	defer ctx.deviceDriver.DestroyShaderModule(fragShader, nil)

	// The triangle's vertices live in the vertex shader, so vertex input
	// stays empty.
	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	// Viewport and scissor are dynamic so the pipeline survives window
	// resizes; only the counts matter here.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{}},
		Scissors:  []core1_0.Rect2D{{}},
	}

	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateScissor,
		},
	}

	// Winding must stay consistent with the vertex order baked into the
	// embedded vertex shader.
	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	r.pipelineLayout, _, err = ctx.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return err
	}

	pipelineCache, _, err := ctx.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{})
	if err != nil {
		return err
	}
	defer ctx.deviceDriver.DestroyPipelineCache(pipelineCache, nil)

	pipelines, _, err := ctx.deviceDriver.CreateGraphicsPipelines(&pipelineCache, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			DynamicState:       dynamicState,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			Layout:             r.pipelineLayout,
			RenderPass:         r.renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return err
	}
	r.pipeline = pipelines[0]

	logPipelineCacheInfo(ctx, pipelineCache)

	return nil
}

// logPipelineCacheInfo decodes the driver's pipeline cache header and logs
// its identity, flagging a cache that does not match the device it was
// produced on. Purely diagnostic; never fatal.
func logPipelineCacheInfo(ctx *Context, pipelineCache core1_0.PipelineCache) {
	cacheData, _, err := ctx.deviceDriver.GetPipelineCacheData(pipelineCache)
	if err != nil {
		log.Printf("warning: reading pipeline cache data: %+v", err)
		return
	}

	// The cache data begins with a fixed header:
	//   4 bytes  header length
	//   4 bytes  VkPipelineCacheHeaderVersion
	//   4 bytes  vendor ID
	//   4 bytes  device ID
	//  16 bytes  cache UUID, equal to the device's pipelineCacheUUID
	reader := bytes.NewReader(cacheData)

	var headerLength uint32
	var headerVersion core1_0.PipelineCacheHeaderVersion
	var vendorID, deviceID uint32
	var cacheUUID uuid.UUID

	for _, field := range []any{&headerLength, &headerVersion, &vendorID, &deviceID, &cacheUUID} {
		err = binary.Read(reader, common.ByteOrder, field)
		if err != nil {
			log.Printf("warning: decoding pipeline cache header: %+v", err)
			return
		}
	}

	properties, err := ctx.instanceDriver.GetPhysicalDeviceProperties(ctx.physicalDevice)
	if err != nil {
		log.Printf("warning: reading device properties: %+v", err)
		return
	}

	if headerVersion != core1_0.PipelineCacheHeaderVersionOne {
		log.Printf("warning: unexpected pipeline cache header version 0x%x", headerVersion)
	}
	if vendorID != properties.VendorID || deviceID != properties.DeviceID || cacheUUID != properties.PipelineCacheUUID {
		log.Printf("warning: pipeline cache %s does not match device %s", cacheUUID, properties.PipelineCacheUUID)
		return
	}

	log.Printf("pipeline cache %s (%d byte header, %d bytes total)", cacheUUID, headerLength, len(cacheData))
}

// RenderPass returns the shared render pass.
func (r *Resources) RenderPass() core1_0.RenderPass {
	return r.renderPass
}

// Destroy releases the pipeline objects in reverse creation order.
func (r *Resources) Destroy(ctx *Context) {
	if r.pipeline.Initialized() {
		ctx.deviceDriver.DestroyPipeline(r.pipeline, nil)
		r.pipeline = core1_0.Pipeline{}
	}

	if r.pipelineLayout.Initialized() {
		ctx.deviceDriver.DestroyPipelineLayout(r.pipelineLayout, nil)
		r.pipelineLayout = core1_0.PipelineLayout{}
	}

	if r.renderPass.Initialized() {
		ctx.deviceDriver.DestroyRenderPass(r.renderPass, nil)
		r.renderPass = core1_0.RenderPass{}
	}
}
