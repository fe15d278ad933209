package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

func (c *Context) createDriver() error {
	var err error
	c.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	return err
}

func (c *Context) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    windowTitle,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	windowExtensions := c.window.InstanceExtensions()
	extensions, _, err := c.globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range windowExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Errorf("window system requires missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if enableValidationLayers {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	// Portability enumeration makes this renderer usable on MoltenVK.
	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	layers, _, err := c.globalDriver.AvailableLayers()
	if err != nil {
		return err
	}

	if enableValidationLayers {
		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Errorf("validation layer %s not available - install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		// Covers instance creation and destruction, which the messenger
		// object itself cannot observe.
		instanceOptions.Next = c.debugMessengerOptions()
	}

	c.instanceDriver, _, err = c.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return err
	}

	return nil
}

func (c *Context) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logValidation,
	}
}

func (c *Context) setupDebugMessenger() error {
	if !enableValidationLayers {
		return nil
	}

	var err error
	c.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	c.debugMessenger, _, err = c.debugDriver.CreateDebugUtilsMessenger(nil, c.debugMessengerOptions())
	if err != nil {
		return err
	}

	return nil
}

func (c *Context) createSurface() error {
	c.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(c.instanceDriver.Instance(), c.surfaceExtension, c.window.SDL())
	if err != nil {
		return err
	}

	c.surface = surface
	return nil
}

// logValidation routes validation-layer diagnostics to the process log.
// Returning false keeps the triggering call running; validation output is
// never fatal.
func logValidation(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("[%s %s] - %s", severity, msgType, data.Message)
	return false
}
