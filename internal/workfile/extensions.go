package workfile

// HostExtensions maps host names to the workfile extensions they save. The
// first extension is the default for new workfiles.
var HostExtensions = map[string][]string{
	"blender":    {".blend"},
	"fusion":     {".comp"},
	"harmony":    {".zip"},
	"houdini":    {".hip", ".hiplc", ".hipnc"},
	"maya":       {".ma", ".mb"},
	"nuke":       {".nk"},
	"nukestudio": {".hrox"},
	"photoshop":  {".psd"},
	"premiere":   {".prproj"},
	"resolve":    {".drp"},
}

// ExtensionsFor returns the workfile extensions of host, or nil.
func ExtensionsFor(host string) []string {
	exts, ok := HostExtensions[host]
	if !ok {
		return nil
	}
	return append([]string(nil), exts...)
}
