package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// QueueFamilyIndices holds the queue families the renderer needs. Both must
// be found before device creation; they may name the same family.
type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// sharingPolicy decides how swapchain images are shared between the
// graphics and present queues. Distinct families need concurrent sharing
// across exactly those two families; a shared family keeps images
// exclusive.
func sharingPolicy(indices QueueFamilyIndices) (core1_0.SharingMode, []int) {
	if indices.IsComplete() && *indices.GraphicsFamily != *indices.PresentFamily {
		return core1_0.SharingModeConcurrent, []int{*indices.GraphicsFamily, *indices.PresentFamily}
	}
	return core1_0.SharingModeExclusive, nil
}

func (c *Context) findQueueFamilies(device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}
	queueFamilies := c.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		supported, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceSupport(c.surface, device, queueFamilyIdx)
		if err != nil {
			return indices, err
		}

		if supported {
			indices.PresentFamily = new(int)
			*indices.PresentFamily = queueFamilyIdx
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

func (c *Context) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (c *Context) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := c.findQueueFamilies(device)
	if err != nil {
		return false
	}

	extensionsSupported := c.checkDeviceExtensionSupport(device)

	var swapchainAdequate bool
	if extensionsSupported {
		support, err := c.querySwapchainSupport(device)
		if err != nil {
			return false
		}

		swapchainAdequate = len(support.Formats) > 0 && len(support.PresentModes) > 0
	}

	return indices.IsComplete() && extensionsSupported && swapchainAdequate
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		if c.isDeviceSuitable(device) {
			c.physicalDevice = device
			break
		}
	}

	if !c.physicalDevice.Initialized() {
		return errors.Errorf("failed to find a suitable GPU")
	}

	properties, err := c.instanceDriver.GetPhysicalDeviceProperties(c.physicalDevice)
	if err != nil {
		return err
	}
	log.Printf("rendering on %s", properties.DriverName)

	c.queueIndices, err = c.findQueueFamilies(c.physicalDevice)
	return err
}

func (c *Context) createLogicalDevice() error {
	uniqueQueueFamilies := []int{*c.queueIndices.GraphicsFamily}
	if uniqueQueueFamilies[0] != *c.queueIndices.PresentFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *c.queueIndices.PresentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Required whenever the implementation is itself layered, e.g. MoltenVK.
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(c.physicalDevice)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	c.deviceDriver, _, err = c.instanceDriver.CreateDevice(c.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	c.graphicsQueue = c.deviceDriver.GetQueue(*c.queueIndices.GraphicsFamily, 0)
	c.presentQueue = c.deviceDriver.GetQueue(*c.queueIndices.PresentFamily, 0)

	c.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(c.deviceDriver)
	return nil
}
