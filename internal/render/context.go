package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"vktriangle/internal/platform"
)

const (
	// maxFramesInFlight bounds how many frames the CPU may record ahead of
	// the GPU. Each frame in flight owns one slot of sync objects.
	maxFramesInFlight = 2

	windowTitle  = "Triangle"
	windowWidth  = 800
	windowHeight = 600

	enableValidationLayers = true
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// Context owns the device-level state every other component reads: drivers,
// surface, physical device, queues, and the command pool. It is created once
// and passed explicitly; nothing in this package touches package-level
// mutable state.
type Context struct {
	window *platform.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension   khr_surface.ExtensionDriver
	surface            khr_surface.Surface
	swapchainExtension khr_swapchain.ExtensionDriver

	physicalDevice core1_0.PhysicalDevice
	queueIndices   QueueFamilyIndices

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	commandPool core1_0.CommandPool
}

// NewContext runs the one-time device bootstrap against the given window.
// Any failure is fatal to initialization and carries the setup mark; the
// caller must still invoke Destroy to release whatever was created.
func NewContext(window *platform.Window) (*Context, error) {
	c := &Context{window: window}

	err := c.createDriver()
	if err != nil {
		return c, setupFailure(err, "loading vulkan driver")
	}

	err = c.createInstance()
	if err != nil {
		return c, setupFailure(err, "creating instance")
	}

	err = c.setupDebugMessenger()
	if err != nil {
		return c, setupFailure(err, "creating debug messenger")
	}

	err = c.createSurface()
	if err != nil {
		return c, setupFailure(err, "creating surface")
	}

	err = c.pickPhysicalDevice()
	if err != nil {
		return c, setupFailure(err, "picking physical device")
	}

	err = c.createLogicalDevice()
	if err != nil {
		return c, setupFailure(err, "creating logical device")
	}

	err = c.createCommandPool()
	if err != nil {
		return c, setupFailure(err, "creating command pool")
	}

	return c, nil
}

func (c *Context) createCommandPool() error {
	// Per-frame command buffers are reset individually each cycle, so the
	// pool must allow it.
	pool, _, err := c.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *c.queueIndices.GraphicsFamily,
	})
	if err != nil {
		return err
	}
	c.commandPool = pool

	return nil
}

// WaitIdle blocks until the device finishes all outstanding work.
func (c *Context) WaitIdle() error {
	if c.deviceDriver == nil {
		return nil
	}
	_, err := c.deviceDriver.DeviceWaitIdle()
	return err
}

// Destroy releases device-level objects in reverse creation order. Safe to
// call on a partially-initialized context.
func (c *Context) Destroy() {
	if c.commandPool.Initialized() {
		c.deviceDriver.DestroyCommandPool(c.commandPool, nil)
		c.commandPool = core1_0.CommandPool{}
	}

	if c.deviceDriver != nil {
		c.deviceDriver.DestroyDevice(nil)
		c.deviceDriver = nil
	}

	if c.debugMessenger.Initialized() {
		c.debugDriver.DestroyDebugUtilsMessenger(c.debugMessenger, nil)
		c.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if c.surface.Initialized() {
		c.surfaceExtension.DestroySurface(c.surface, nil)
		c.surface = khr_surface.Surface{}
	}

	if c.instanceDriver != nil {
		c.instanceDriver.DestroyInstance(nil)
		c.instanceDriver = nil
	}
}
