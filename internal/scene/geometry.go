package scene

import "fmt"

// Vec3 is a point in scene space.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v*f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// BoundingBoxCenter returns the mean of the eight corners of a bounding box.
func BoundingBoxCenter(corners [8]Vec3) Vec3 {
	var sum Vec3
	for _, c := range corners {
		sum = sum.Add(c)
	}
	return sum.Scale(1.0 / 8)
}
