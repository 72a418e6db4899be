// Package window owns the SDL2 window the swapchain presents to.
package window

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type EventKind int

const (
	EventResized EventKind = iota
	EventMinimized
	EventRestored
	EventClose
)

var eventNames = map[EventKind]string{
	EventResized:   "resized",
	EventMinimized: "minimized",
	EventRestored:  "restored",
	EventClose:     "close",
}

func (k EventKind) String() string {
	return eventNames[k]
}

// Event is a window event the render loop reacts to. Size is only set for
// EventResized and is in window coordinates, not pixels.
type Event struct {
	Kind EventKind
	Size gpu.Extent
}

type Window struct {
	window *sdl.Window
}

// New initializes SDL video and opens a resizable Vulkan window.
func New(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initializing sdl video")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "creating window")
	}

	return &Window{window: window}, nil
}

// SDL exposes the underlying window for surface creation.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

// InstanceExtensions lists the instance extensions presentation needs.
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// DrawableSize is the size of the drawable area in pixels. A minimized window
// reports an empty extent.
func (w *Window) DrawableSize() gpu.Extent {
	if (w.window.GetFlags() & sdl.WINDOW_MINIMIZED) != 0 {
		return gpu.Extent{}
	}

	width, height := w.window.VulkanGetDrawableSize()
	return gpu.Extent{Width: int(width), Height: int(height)}
}

// Poll drains the SDL event queue.
func (w *Window) Poll() []Event {
	var events []Event
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if translated, ok := translate(event); ok {
			events = append(events, translated)
		}
	}
	return events
}

// Wait sleeps for d. Used while frames are being skipped.
func (w *Window) Wait(d time.Duration) {
	sdl.Delay(delayMillis(d))
}

// delayMillis rounds d up to whole milliseconds for sdl.Delay.
func delayMillis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32((d + time.Millisecond - 1) / time.Millisecond)
}

func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}

func translate(event sdl.Event) (Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return Event{Kind: EventClose}, true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			return Event{Kind: EventClose}, true
		case sdl.WINDOWEVENT_MINIMIZED:
			return Event{Kind: EventMinimized}, true
		case sdl.WINDOWEVENT_RESTORED:
			return Event{Kind: EventRestored}, true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			return Event{
				Kind: EventResized,
				Size: gpu.Extent{Width: int(e.Data1), Height: int(e.Data2)},
			}, true
		}
	}
	return Event{}, false
}
