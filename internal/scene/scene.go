// Package scene holds the objects drawn each frame and records their draw
// commands.
package scene

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

// Clock measures the time between frames.
type Clock struct {
	now  func() time.Duration
	last time.Duration
}

func NewClock() *Clock {
	return newClock(hrtime.Now)
}

func newClock(now func() time.Duration) *Clock {
	return &Clock{now: now, last: now()}
}

// Tick returns the time elapsed since the previous Tick.
func (c *Clock) Tick() time.Duration {
	now := c.now()
	dt := now - c.last
	c.last = now
	return dt
}

type Scene struct {
	registry *Registry
	meshes   *Meshes
	camera   Camera
	clock    *Clock
}

func New(meshes *Meshes) *Scene {
	return &Scene{
		registry: NewRegistry(),
		meshes:   meshes,
		camera:   DefaultCamera(),
		clock:    NewClock(),
	}
}

func (s *Scene) Registry() *Registry   { return s.registry }
func (s *Scene) Meshes() *Meshes       { return s.meshes }
func (s *Scene) Camera() *Camera       { return &s.camera }
func (s *Scene) SetClock(clock *Clock) { s.clock = clock }

// Populate places the default objects: a row of spinning cubes with a
// triangle above and the fractal below.
func (s *Scene) Populate() {
	for i, x := range []float32{-1.5, 0, 1.5} {
		s.registry.Add(Object{
			Mesh:     s.meshes.Cube,
			Color:    mgl32.Vec4{1, 1, 1, 1},
			Position: mgl32.Vec3{x, 0, 0},
			Scale:    0.6,
			Rotation: float32(i) * 0.5,
			Spin:     0.6 + 0.3*float32(i),
		})
	}

	s.registry.Add(Object{
		Mesh:     s.meshes.Triangle,
		Color:    mgl32.Vec4{1, 1, 1, 1},
		Position: mgl32.Vec3{0, 1.1, 0},
		Scale:    0.5,
		Spin:     -0.4,
	})

	s.registry.Add(Object{
		Mesh:     s.meshes.Fractal,
		Color:    mgl32.Vec4{1, 1, 1, 1},
		Position: mgl32.Vec3{0, -1.1, 0},
		Scale:    0.7,
		Spin:     0.2,
	})
}

// Upload creates vertex buffers for every mesh.
func (s *Scene) Upload(device gpu.Device) error {
	for _, mesh := range s.meshes.All() {
		if err := mesh.Upload(device); err != nil {
			return err
		}
	}
	return nil
}

// Update advances every object by the time since the last update.
func (s *Scene) Update() {
	s.Advance(s.clock.Tick())
}

func (s *Scene) Advance(dt time.Duration) {
	for _, obj := range s.registry.Objects() {
		obj.advance(dt)
	}
}

// Record binds pipeline and draws every object with its push constants.
func (s *Scene) Record(cmd gpu.CommandBuffer, pipeline gpu.Pipeline, aspect float32) error {
	viewProjection := s.camera.ViewProjection(aspect)

	cmd.BindPipeline(pipeline)
	for _, obj := range s.registry.Objects() {
		if obj.Mesh == nil || obj.Mesh.Buffer() == nil {
			return errors.Newf("object %d has no uploaded mesh", obj.ID)
		}

		push := PushConstants{
			Transform: viewProjection.Mul4(obj.Model()),
			Color:     obj.Color,
		}
		data, err := push.Bytes()
		if err != nil {
			return err
		}

		err = cmd.PushConstants(pipeline, 0, data)
		if err != nil {
			return errors.Wrapf(err, "pushing constants for object %d", obj.ID)
		}
		cmd.BindVertexBuffer(obj.Mesh.Buffer())
		cmd.Draw(len(obj.Mesh.Vertices))
	}
	return nil
}

// Destroy releases the vertex buffers.
func (s *Scene) Destroy() {
	for _, mesh := range s.meshes.All() {
		mesh.Destroy()
	}
}
