// Package vkng implements the gpu device contract on top of vkngwrapper.
package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

type Options struct {
	AppName    string
	Validation bool
	Logger     logrus.FieldLogger
}

// Window is the presentation target a Context is created for.
type Window interface {
	SDL() *sdl.Window
	InstanceExtensions() []string
}

type queueFamilies struct {
	graphics *int
	present  *int
}

func (f queueFamilies) complete() bool {
	return f.graphics != nil && f.present != nil
}

// Context owns the instance, the window surface, the logical device and the
// command pool. It implements gpu.Device.
type Context struct {
	log logrus.FieldLogger

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension   khr_surface.ExtensionDriver
	swapchainExtension khr_swapchain.ExtensionDriver
	surface            khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	families       queueFamilies

	graphics *queue
	present  *queue

	commandPool core1_0.CommandPool

	// colorSpaces remembers the color space paired with each surface format
	// so that swapchains can be created from a gpu.Format alone.
	colorSpaces map[gpu.Format]khr_surface.ColorSpace
}

var _ gpu.Device = (*Context)(nil)

// New creates a Vulkan device able to present to window. On failure every
// object created so far is released.
func New(window Window, opts Options) (*Context, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.AppName == "" {
		opts.AppName = "cubes"
	}

	ctx := &Context{
		log:         opts.Logger,
		colorSpaces: make(map[gpu.Format]khr_surface.ColorSpace),
	}

	var err error
	ctx.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "loading vulkan")
	}

	steps := []struct {
		stage string
		run   func() error
	}{
		{"creating instance", func() error { return ctx.createInstance(window, opts) }},
		{"creating debug messenger", func() error { return ctx.setupDebugMessenger(opts.Validation) }},
		{"creating surface", func() error { return ctx.createSurface(window.SDL()) }},
		{"picking physical device", ctx.pickPhysicalDevice},
		{"creating logical device", ctx.createLogicalDevice},
		{"creating command pool", ctx.createCommandPool},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			ctx.Destroy()
			return nil, errors.Wrap(err, step.stage)
		}
	}

	props, err := ctx.instanceDriver.GetPhysicalDeviceProperties(ctx.physicalDevice)
	if err == nil {
		ctx.log.WithFields(logrus.Fields{
			"device":   props.DeviceName,
			"graphics": *ctx.families.graphics,
			"present":  *ctx.families.present,
		}).Info("vulkan device ready")
	}

	return ctx, nil
}

func (c *Context) createInstance(window Window, opts Options) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "cubes",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := c.globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range window.InstanceExtensions() {
		if _, ok := extensions[ext]; !ok {
			return errors.Newf("missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if _, ok := extensions[khr_portability_enumeration.ExtensionName]; ok {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)

		layers, _, err := c.globalDriver.AvailableLayers()
		if err != nil {
			return err
		}
		for _, layer := range validationLayers {
			if _, ok := layers[layer]; !ok {
				return errors.Newf("validation layer %s not available, install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		// Also catches messages from instance creation itself.
		instanceOptions.Next = c.debugMessengerOptions()
	}

	instance, _, err := c.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return err
	}

	c.instanceDriver, err = c.globalDriver.BuildInstanceDriver(instance)
	return err
}

func (c *Context) setupDebugMessenger(validation bool) error {
	if !validation {
		return nil
	}

	var err error
	c.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	c.debugMessenger, _, err = c.debugDriver.CreateDebugUtilsMessenger(nil, c.debugMessengerOptions())
	return err
}

func (c *Context) createSurface(window *sdl.Window) error {
	c.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(c.instanceDriver.Instance(), c.surfaceExtension, window)
	if err != nil {
		return err
	}

	c.surface = surface
	return nil
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		families, err := c.findQueueFamilies(device)
		if err != nil {
			return err
		}
		if families.complete() && c.isDeviceSuitable(device) {
			c.physicalDevice = device
			c.families = families
			return nil
		}
	}

	return errors.Newf("none of %d devices can present to the window", len(physicalDevices))
}

func (c *Context) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}
	for _, extension := range deviceExtensions {
		if _, ok := extensions[extension]; !ok {
			return false
		}
	}

	formats, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceFormats(c.surface, device)
	if err != nil {
		return false
	}
	presentModes, _, err := c.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(c.surface, device)
	if err != nil {
		return false
	}
	return len(formats) > 0 && len(presentModes) > 0
}

func (c *Context) findQueueFamilies(device core1_0.PhysicalDevice) (queueFamilies, error) {
	var families queueFamilies
	queueFamilyProps := c.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for index, family := range queueFamilyProps {
		if (family.QueueFlags&core1_0.QueueGraphics) != 0 && families.graphics == nil {
			graphics := index
			families.graphics = &graphics
		}

		supported, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceSupport(c.surface, device, index)
		if err != nil {
			return families, err
		}
		if supported && families.present == nil {
			present := index
			families.present = &present
		}

		if families.complete() {
			break
		}
	}

	return families, nil
}

func (c *Context) createLogicalDevice() error {
	uniqueFamilies := []int{*c.families.graphics}
	if *c.families.present != *c.families.graphics {
		uniqueFamilies = append(uniqueFamilies, *c.families.present)
	}

	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range uniqueFamilies {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := append([]string{}, deviceExtensions...)

	// Needed on MoltenVK.
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(c.physicalDevice)
	if err != nil {
		return err
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	device, _, err := c.instanceDriver.CreateDevice(c.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueInfos,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	c.deviceDriver, err = c.instanceDriver.BuildDeviceDriver(device)
	if err != nil {
		// The driver owns DestroyDevice, so without one the handle cannot be
		// released here.
		return err
	}

	c.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(c.deviceDriver)
	c.graphics = &queue{ctx: c, handle: c.deviceDriver.GetQueue(*c.families.graphics, 0), family: *c.families.graphics}
	if *c.families.present == *c.families.graphics {
		c.present = c.graphics
	} else {
		c.present = &queue{ctx: c, handle: c.deviceDriver.GetQueue(*c.families.present, 0), family: *c.families.present}
	}
	return nil
}

func (c *Context) createCommandPool() error {
	pool, _, err := c.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: *c.families.graphics,
	})
	if err != nil {
		return err
	}

	c.commandPool = pool
	return nil
}

func (c *Context) GraphicsQueue() gpu.Queue { return c.graphics }
func (c *Context) PresentQueue() gpu.Queue  { return c.present }

func (c *Context) WaitIdle() error {
	_, err := c.deviceDriver.DeviceWaitIdle()
	return err
}

// Destroy releases the device and everything created with the context
// itself. Objects handed out to callers must already be destroyed.
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
