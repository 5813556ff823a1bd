package api

// Identifiers written into every container and instance imprint.
const (
	ContainerSchema = "avalon-core:container-2.0"
	ContainerID     = "pyblish.avalon.container"
	InstanceID      = "pyblish.avalon.instance"
)

// Container is the marker a host keeps for loaded content. It links the
// scene data back to the Loader and representation that produced it.
type Container struct {
	Schema         string         `json:"schema"`
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Namespace      string         `json:"namespace"`
	Loader         string         `json:"loader"`
	Representation string         `json:"representation"`
	ObjectName     string         `json:"objectName,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}
