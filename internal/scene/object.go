package scene

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Object is one mesh placed in the world.
type Object struct {
	ID       int
	Mesh     *Mesh
	Color    mgl32.Vec4
	Position mgl32.Vec3
	Scale    float32

	// Rotation is the current angle around the Y axis in radians; Spin is how
	// fast it advances in radians per second.
	Rotation float32
	Spin     float32
}

// Model is the object to world transform.
func (o *Object) Model() mgl32.Mat4 {
	scale := o.Scale
	if scale == 0 {
		scale = 1
	}
	return mgl32.Translate3D(o.Position.X(), o.Position.Y(), o.Position.Z()).
		Mul4(mgl32.HomogRotate3DY(o.Rotation)).
		Mul4(mgl32.HomogRotate3DX(o.Rotation * 0.5)).
		Mul4(mgl32.Scale3D(scale, scale, scale))
}

func (o *Object) advance(dt time.Duration) {
	o.Rotation += o.Spin * float32(dt.Seconds())
}

// Registry hands out object IDs in creation order, starting at zero.
type Registry struct {
	next    int
	objects []*Object
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add stores a copy of obj under a fresh ID and returns it.
func (r *Registry) Add(obj Object) *Object {
	obj.ID = r.next
	r.next++

	stored := &obj
	r.objects = append(r.objects, stored)
	return stored
}

func (r *Registry) Get(id int) (*Object, bool) {
	for _, obj := range r.objects {
		if obj.ID == id {
			return obj, true
		}
	}
	return nil, false
}

// Remove drops the object. IDs are never reused.
func (r *Registry) Remove(id int) bool {
	for i, obj := range r.objects {
		if obj.ID == id {
			r.objects = append(r.objects[:i], r.objects[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Objects() []*Object { return r.objects }
func (r *Registry) Len() int           { return len(r.objects) }
