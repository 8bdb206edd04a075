package cache

import "strconv"

const (
	// KeyLayerNames holds the name -> id mapping of all layers
	KeyLayerNames = "layer_names"
	// KeyLayersAvailable marks the registry as populated
	KeyLayersAvailable = "layers_available"

	layerKeyPrefix = "layer!!"
)

// LayerKey returns the key of a layer's record snapshot
func LayerKey(id int64) string {
	return layerKeyPrefix + strconv.FormatInt(id, 10)
}
