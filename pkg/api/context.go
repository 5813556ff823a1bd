package api

// Project is the minimal project identity handed to plug-ins.
type Project struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Context is the full ancestry of a representation. Loaders receive a fresh
// Context for every operation.
type Context struct {
	Project        Project
	Asset          Document
	Subset         Document
	Version        Document
	Representation Document

	// Path is the resolved file path of the representation, empty when no
	// resolution tier produced one.
	Path string
}

// Families returns the families a Loader is matched against. Subsets using
// the 3.0 schema carry them on the subset, older ones on the version.
func (c *Context) Families() []string {
	if c == nil {
		return nil
	}
	if c.Subset.Schema() == SubsetSchemaV3 {
		return c.Subset.StringsAt("data", "families")
	}
	return c.Version.StringsAt("data", "families")
}

// Family is the primary family recorded on the representation context.
func (c *Context) Family() string {
	if c == nil {
		return ""
	}
	return c.Representation.StringAt("context", "family")
}
