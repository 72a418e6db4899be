package scene

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// PushConstantsSize is the byte size of PushConstants as seen by the vertex
// shader.
const PushConstantsSize = 80

// PushConstants is the per-draw data: a column-major clip space transform
// followed by the object color.
type PushConstants struct {
	Transform mgl32.Mat4
	Color     mgl32.Vec4
}

func (p PushConstants) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Grow(PushConstantsSize)

	err := binary.Write(buf, binary.LittleEndian, p)
	if err != nil {
		return nil, errors.Wrap(err, "encoding push constants")
	}
	return buf.Bytes(), nil
}

// vulkanClip flips Y and maps depth from [-1, 1] to [0, 1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera produces the view and projection half of each transform.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3
	FovY   float32
	Near   float32
	Far    float32
}

func DefaultCamera() Camera {
	return Camera{
		Eye:    mgl32.Vec3{0, 0, -4},
		Target: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		FovY:   mgl32.DegToRad(45),
		Near:   0.1,
		Far:    100,
	}
}

// ViewProjection is the world to clip transform for the given aspect ratio.
func (c Camera) ViewProjection(aspect float32) mgl32.Mat4 {
	projection := mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
	view := mgl32.LookAtV(c.Eye, c.Target, c.Up)
	return vulkanClip.Mul4(projection).Mul4(view)
}
