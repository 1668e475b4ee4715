package marstools

import "github.com/jward/marstools/internal/scene"

// Vec3 is a point in scene space.
type Vec3 = scene.Vec3

// BoundingBoxCenter returns the mean of the eight corners of a bounding box.
func BoundingBoxCenter(corners [8]Vec3) Vec3 {
	return scene.BoundingBoxCenter(corners)
}
