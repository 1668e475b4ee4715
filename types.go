package marstools

import (
	"github.com/jward/marstools/internal/scene"
	"github.com/jward/marstools/internal/store"
)

// Public type aliases for the internal scene and store types used in the
// QueryBuilder API. External consumers use these names; no conversion is
// needed.

type Object = scene.Object
type Provider = scene.Provider
type Memory = scene.Memory
type SceneFile = scene.File
type Store = store.Store

// NewMemory returns an empty in-memory scene provider.
func NewMemory() *Memory {
	return scene.NewMemory()
}
