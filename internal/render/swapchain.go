package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// SupportDetails is everything the surface reports about what a swapchain
// on it may look like. A device with an empty format or present-mode list
// cannot present to the surface at all.
type SupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (c *Context) querySwapchainSupport(device core1_0.PhysicalDevice) (SupportDetails, error) {
	var details SupportDetails
	var err error

	details.Capabilities, _, err = c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(c.surface, device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = c.surfaceExtension.GetPhysicalDeviceSurfaceFormats(c.surface, device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = c.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(c.surface, device)
	return details, err
}

// chooseSurfaceFormat prefers 8-bit BGRA with an sRGB nonlinear color
// space, falling back to whatever the surface lists first.
func chooseSurfaceFormat(available []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range available {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return available[0]
}

// choosePresentMode prefers mailbox (low-latency triple buffering) and
// falls back to FIFO, the only mode every implementation must support.
func choosePresentMode(available []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range available {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// chooseExtent uses the surface's current extent verbatim when it is
// defined; otherwise it derives the extent from the live framebuffer pixel
// size, clamped component-wise to the supported range.
func chooseExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := drawableWidth
	height := drawableHeight

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

// chooseImageCount requests one image beyond the surface minimum so a frame
// can be recorded while the previous one presents, capped by the maximum
// when the surface reports one (zero means unbounded).
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	count := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < count {
		count = capabilities.MaxImageCount
	}
	return count
}

// chainPlan is the fully-derived swapchain configuration. Deriving it is
// pure: the same support data and window size always plan the same chain.
type chainPlan struct {
	format        khr_surface.SurfaceFormat
	presentMode   khr_surface.PresentMode
	extent        core1_0.Extent2D
	imageCount    int
	sharingMode   core1_0.SharingMode
	queueFamilies []int
}

func planSwapchain(support SupportDetails, indices QueueFamilyIndices, drawableWidth, drawableHeight int) chainPlan {
	sharingMode, queueFamilies := sharingPolicy(indices)
	return chainPlan{
		format:        chooseSurfaceFormat(support.Formats),
		presentMode:   choosePresentMode(support.PresentModes),
		extent:        chooseExtent(support.Capabilities, drawableWidth, drawableHeight),
		imageCount:    chooseImageCount(support.Capabilities),
		sharingMode:   sharingMode,
		queueFamilies: queueFamilies,
	}
}

// drawableWindow is the sliver of the window the swapchain needs: the pixel
// size of the drawable, and a way to sleep until it might have changed.
type drawableWindow interface {
	DrawableSize() (int, int)
	WaitEvent()
}

// waitForDrawableArea blocks until the window reports a nonzero drawable
// area, waiting on window events between polls rather than spinning. A zero
// area means the window is fully minimized and no swapchain can exist.
func waitForDrawableArea(window drawableWindow) (int, int) {
	width, height := window.DrawableSize()
	for width == 0 || height == 0 {
		window.WaitEvent()
		width, height = window.DrawableSize()
	}
	return width, height
}

// Chain owns the presentable image chain and everything whose lifetime is
// tied to it: one view and one framebuffer per image. The images themselves
// belong to the swapchain object and die with it.
type Chain struct {
	ctx        *Context
	renderPass core1_0.RenderPass

	swapchain    khr_swapchain.Swapchain
	images       []core1_0.Image
	views        []core1_0.ImageView
	framebuffers []core1_0.Framebuffer

	format core1_0.Format
	extent core1_0.Extent2D
}

// NewChain creates the initial swapchain. Views and framebuffers follow in
// AttachRenderPass once the render pass exists, since it needs the chain's
// surface format first.
func NewChain(ctx *Context) (*Chain, error) {
	chain := &Chain{ctx: ctx}

	err := chain.create()
	if err != nil {
		return chain, setupFailure(err, "creating swapchain")
	}

	return chain, nil
}

// AttachRenderPass records the shared render pass and builds the per-image
// views and framebuffers against it.
func (s *Chain) AttachRenderPass(renderPass core1_0.RenderPass) error {
	s.renderPass = renderPass

	err := s.createViewsAndFramebuffers()
	if err != nil {
		return setupFailure(err, "creating swapchain views and framebuffers")
	}

	return nil
}

func (s *Chain) create() error {
	support, err := s.ctx.querySwapchainSupport(s.ctx.physicalDevice)
	if err != nil {
		return err
	}

	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return errors.Errorf("surface reports no formats or present modes")
	}

	drawableWidth, drawableHeight := s.ctx.window.DrawableSize()
	plan := planSwapchain(support, s.ctx.queueIndices, drawableWidth, drawableHeight)

	swapchain, _, err := s.ctx.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: s.ctx.surface,

		MinImageCount:    plan.imageCount,
		ImageFormat:      plan.format.Format,
		ImageColorSpace:  plan.format.ColorSpace,
		ImageExtent:      plan.extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   plan.sharingMode,
		QueueFamilyIndices: plan.queueFamilies,

		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    plan.presentMode,
		Clipped:        true,
	})
	if err != nil {
		return err
	}

	// The implementation may hand back more images than requested.
	images, _, err := s.ctx.swapchainExtension.GetSwapchainImages(swapchain)
	if err != nil {
		s.ctx.swapchainExtension.DestroySwapchain(swapchain, nil)
		return err
	}

	s.swapchain = swapchain
	s.images = images
	s.format = plan.format.Format
	s.extent = plan.extent

	return nil
}

func (s *Chain) createViewsAndFramebuffers() error {
	for _, image := range s.images {
		view, _, err := s.ctx.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   s.format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return err
		}
		s.views = append(s.views, view)

		framebuffer, _, err := s.ctx.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: s.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				view,
			},
			Width:  s.extent.Width,
			Height: s.extent.Height,
		})
		if err != nil {
			return err
		}
		s.framebuffers = append(s.framebuffers, framebuffer)
	}

	return nil
}

// Recreate rebuilds the chain after the surface went stale or changed size.
// It refuses to build a zero-area chain: while the drawable area is zero it
// blocks on window events until the area comes back. The device-idle wait
// guarantees no in-flight command buffer still references the old
// framebuffers when they are destroyed.
func (s *Chain) Recreate() error {
	waitForDrawableArea(s.ctx.window)

	_, err := s.ctx.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return err
	}

	s.destroy()

	err = s.create()
	if err != nil {
		return err
	}

	return s.createViewsAndFramebuffers()
}

// destroy tears down in strict reverse creation order: framebuffers, then
// views, then the swapchain. The images are owned by the swapchain and must
// not be destroyed individually.
func (s *Chain) destroy() {
	for _, framebuffer := range s.framebuffers {
		s.ctx.deviceDriver.DestroyFramebuffer(framebuffer, nil)
	}
	s.framebuffers = nil

	for _, view := range s.views {
		s.ctx.deviceDriver.DestroyImageView(view, nil)
	}
	s.views = nil

	if s.swapchain.Initialized() {
		s.ctx.swapchainExtension.DestroySwapchain(s.swapchain, nil)
		s.swapchain = khr_swapchain.Swapchain{}
	}
	s.images = nil
}

// Destroy releases the chain during shutdown.
func (s *Chain) Destroy() {
	s.destroy()
}

// Handle returns the live swapchain object.
func (s *Chain) Handle() khr_swapchain.Swapchain {
	return s.swapchain
}

// Framebuffer returns the framebuffer wrapping the image at index.
func (s *Chain) Framebuffer(index int) core1_0.Framebuffer {
	return s.framebuffers[index]
}

// Extent returns the chain's current pixel extent.
func (s *Chain) Extent() core1_0.Extent2D {
	return s.extent
}

// Format returns the chain's image format.
func (s *Chain) Format() core1_0.Format {
	return s.format
}
