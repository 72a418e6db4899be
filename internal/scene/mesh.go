package scene

import (
	"bytes"
	"embed"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

//go:embed meshes
var fileSystem embed.FS

// MaxFractalDepth keeps the fractal mesh within a single small vertex buffer.
const MaxFractalDepth = 8

// Vertex matches the vertex input layout of the pipeline: location 0 is the
// position, location 1 the color.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// VertexStride is the size of one Vertex in a vertex buffer.
const VertexStride = 24

type Mesh struct {
	Name     string
	Vertices []Vertex

	buffer gpu.Buffer
}

// Bytes encodes the vertices in vertex buffer layout.
func (m *Mesh) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, binary.LittleEndian, m.Vertices)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s vertices", m.Name)
	}
	return buf.Bytes(), nil
}

// Upload copies the mesh into a device vertex buffer.
func (m *Mesh) Upload(device gpu.Device) error {
	data, err := m.Bytes()
	if err != nil {
		return err
	}

	buffer, err := device.CreateVertexBuffer(data)
	if err != nil {
		return errors.Wrapf(err, "uploading %s", m.Name)
	}
	m.buffer = buffer
	return nil
}

// Buffer is nil until the mesh has been uploaded.
func (m *Mesh) Buffer() gpu.Buffer {
	return m.buffer
}

func (m *Mesh) Destroy() {
	if m.buffer != nil {
		m.buffer.Destroy()
		m.buffer = nil
	}
}

type Meshes struct {
	Cube     *Mesh
	Triangle *Mesh
	Fractal  *Mesh
}

func (m *Meshes) All() []*Mesh {
	return []*Mesh{m.Cube, m.Triangle, m.Fractal}
}

// LoadMeshes decodes the cube and generates the triangle and fractal in
// parallel.
func LoadMeshes(fractalDepth int) (*Meshes, error) {
	meshes := &Meshes{}

	var group errgroup.Group
	group.Go(func() error {
		var err error
		meshes.Cube, err = LoadCube()
		return err
	})
	group.Go(func() error {
		meshes.Triangle = Triangle()
		return nil
	})
	group.Go(func() error {
		var err error
		meshes.Fractal, err = Fractal(fractalDepth)
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// LoadCube decodes the embedded cube. Each face takes the diffuse color of its
// material.
func LoadCube() (*Mesh, error) {
	meshFile, err := fileSystem.Open("meshes/cube.obj")
	if err != nil {
		return nil, err
	}
	defer meshFile.Close()

	matFile, err := fileSystem.Open("meshes/cube.mtl")
	if err != nil {
		return nil, err
	}
	defer matFile.Close()

	decoder, err := obj.DecodeReader(meshFile, matFile)
	if err != nil {
		return nil, errors.Wrap(err, "decoding cube")
	}

	mesh := &Mesh{Name: "cube"}
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			color := mgl32.Vec3{1, 1, 1}
			if mat, ok := decoder.Materials[face.Material]; ok {
				color = mgl32.Vec3{mat.Diffuse.R, mat.Diffuse.G, mat.Diffuse.B}
			}

			// Faces are fanned into triangles.
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					vertInd := face.Vertices[corner]
					mesh.Vertices = append(mesh.Vertices, Vertex{
						Position: mgl32.Vec3{
							decoder.Vertices[vertInd*3],
							decoder.Vertices[vertInd*3+1],
							decoder.Vertices[vertInd*3+2],
						},
						Color: color,
					})
				}
			}
		}
	}

	if len(mesh.Vertices) == 0 {
		return nil, errors.New("cube mesh has no faces")
	}
	return mesh, nil
}

func Triangle() *Mesh {
	return &Mesh{
		Name: "triangle",
		Vertices: []Vertex{
			{Position: mgl32.Vec3{0, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}},
			{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}},
		},
	}
}

// Fractal builds a Sierpinski triangle with 3^depth triangles. Color shifts
// from blue at the top corner towards orange at the base.
func Fractal(depth int) (*Mesh, error) {
	if depth < 0 || depth > MaxFractalDepth {
		return nil, errors.Newf("fractal depth %d outside 0..%d", depth, MaxFractalDepth)
	}

	mesh := &Mesh{Name: "fractal"}
	sierpinski(mesh,
		mgl32.Vec3{0, -0.5, 0},
		mgl32.Vec3{0.5, 0.5, 0},
		mgl32.Vec3{-0.5, 0.5, 0},
		depth)
	return mesh, nil
}

func sierpinski(mesh *Mesh, a, b, c mgl32.Vec3, depth int) {
	if depth == 0 {
		for _, p := range []mgl32.Vec3{a, b, c} {
			mesh.Vertices = append(mesh.Vertices, Vertex{Position: p, Color: fractalColor(p)})
		}
		return
	}

	ab := a.Add(b).Mul(0.5)
	bc := b.Add(c).Mul(0.5)
	ca := c.Add(a).Mul(0.5)

	sierpinski(mesh, a, ab, ca, depth-1)
	sierpinski(mesh, ab, b, bc, depth-1)
	sierpinski(mesh, ca, bc, c, depth-1)
}

func fractalColor(p mgl32.Vec3) mgl32.Vec3 {
	t := p.Y() + 0.5
	top := mgl32.Vec3{0.1, 0.1, 0.8}
	base := mgl32.Vec3{0.9, 0.6, 0.1}
	return top.Mul(1 - t).Add(base.Mul(t))
}
