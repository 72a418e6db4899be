// Command cubes opens a window and draws spinning cubes, a triangle and a
// Sierpinski fractal until the window is closed.
package main

import (
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/cubes/internal/config"
	"github.com/vkngwrapper/cubes/internal/frame"
	"github.com/vkngwrapper/cubes/internal/gpu"
	"github.com/vkngwrapper/cubes/internal/scene"
	"github.com/vkngwrapper/cubes/internal/vkng"
	"github.com/vkngwrapper/cubes/internal/window"
)

//go:generate glslc ../../shaders/cube.vert -o ../../shaders/cube.vert.spv
//go:generate glslc ../../shaders/cube.frag -o ../../shaders/cube.frag.spv

// skipDelay is how long the loop sleeps after a skipped frame, so that a
// minimized window does not spin a core.
const skipDelay = 10 * time.Millisecond

type app struct {
	cfg config.Config
	log *logrus.Logger

	window   *window.Window
	context  *vkng.Context
	pass     gpu.RenderPass
	pipeline gpu.Pipeline
	engine   *frame.Engine
	scene    *scene.Scene
}

func main() {
	// SDL and the presentation engine expect calls from the main thread.
	runtime.LockOSThread()

	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatalf("%+v", errors.Wrap(err, "loading configuration"))
	}
	log := cfg.Logger()

	a := &app{cfg: cfg, log: log}
	err = a.init()
	if err == nil {
		err = a.run()
	}
	a.cleanup()

	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func (a *app) init() error {
	var err error

	a.window, err = window.New(a.cfg.Window.Title, a.cfg.Window.Width, a.cfg.Window.Height)
	if err != nil {
		return err
	}

	a.context, err = vkng.New(a.window, vkng.Options{
		AppName:    a.cfg.Window.Title,
		Validation: a.cfg.Renderer.Validation,
		Logger:     a.log,
	})
	if err != nil {
		return errors.Wrap(err, "creating device")
	}

	caps, err := a.context.SurfaceCapabilities()
	if err != nil {
		return errors.Wrap(err, "querying surface")
	}
	if len(caps.Formats) == 0 {
		return errors.New("surface reports no formats")
	}

	// The swapchain manager picks the first reported format, so the render
	// pass is built for the same one.
	a.pass, err = a.context.CreateRenderPass(caps.Formats[0], true)
	if err != nil {
		return errors.Wrap(err, "creating render pass")
	}

	shaders, err := vkng.LoadShaders(a.cfg.Renderer.ShaderDir, "cube")
	if err != nil {
		return errors.Wrap(err, "loading shaders")
	}

	a.pipeline, err = a.context.CreatePipeline(a.pass, vkng.PipelineInfo{
		Shaders:            shaders,
		VertexStride:       scene.VertexStride,
		AttributeOffsets:   []int{0, 12},
		PushConstantsSize:  scene.PushConstantsSize,
		PushConstantStages: gpu.StageVertex,
	})
	if err != nil {
		return errors.Wrap(err, "creating pipeline")
	}

	a.engine, err = frame.New(a.context, a.window, a.pass, frame.Options{
		Logger:     a.log,
		ClearColor: a.cfg.Renderer.ClearColor,
	})
	if err != nil {
		return errors.Wrap(err, "starting frame engine")
	}

	meshes, err := scene.LoadMeshes(a.cfg.Scene.FractalDepth)
	if err != nil {
		return errors.Wrap(err, "generating meshes")
	}
	a.scene = scene.New(meshes)
	if err := a.scene.Upload(a.context); err != nil {
		return err
	}
	a.scene.Populate()

	return nil
}

func (a *app) run() error {
	lastStats := time.Now()

	for {
		for _, event := range a.window.Poll() {
			switch event.Kind {
			case window.EventClose:
				return nil
			case window.EventResized, window.EventRestored:
				a.log.WithFields(logrus.Fields{
					"event": event.Kind,
					"size":  event.Size,
				}).Debug("window changed")
				a.engine.RequestResize()
			}
		}

		a.scene.Update()

		f, err := a.engine.BeginFrame()
		if err != nil {
			return errors.Wrap(err, "beginning frame")
		}
		if f == nil {
			a.window.Wait(skipDelay)
			continue
		}

		err = a.scene.Record(f.Commands(), a.pipeline, f.AspectRatio())
		if err != nil {
			return errors.Wrap(err, "recording scene")
		}

		err = a.engine.EndFrame(f)
		if err != nil {
			return errors.Wrap(err, "ending frame")
		}

		interval := a.cfg.Log.StatsInterval
		if interval > 0 && time.Since(lastStats) >= interval {
			lastStats = time.Now()
			stats := a.engine.Stats()
			a.log.WithFields(logrus.Fields{
				"frames":     stats.Frames,
				"skipped":    stats.Skipped,
				"dropped":    stats.Dropped,
				"rebuilds":   stats.Rebuilds,
				"frame_time": stats.LastFrame,
				"in_flight":  a.engine.InFlight(),
			}).Info("frame stats")
		}
	}
}

// cleanup releases in reverse order of creation. Every step tolerates the
// ones before it never having run.
func (a *app) cleanup() {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.log.WithError(err).Error("closing frame engine")
		}
	} else if a.context != nil {
		_ = a.context.WaitIdle()
	}

	if a.scene != nil {
		a.scene.Destroy()
	}
	if a.pipeline != nil {
		a.pipeline.Destroy()
	}
	if a.pass != nil {
		a.pass.Destroy()
	}
	if a.context != nil {
		a.context.Destroy()
	}
	if a.window != nil {
		a.window.Destroy()
	}
}
