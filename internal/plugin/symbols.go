package plugin

import (
	"reflect"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// APIImportPath is the import path scripts use for the plug-in SDK.
const APIImportPath = "github.com/alexisbeaulieu97/avalon/pkg/api"

// Symbols exposes pkg/api to the script interpreter. Scripts build plug-ins
// out of the *Funcs types so they never implement an interface themselves.
var Symbols = map[string]map[string]reflect.Value{
	APIImportPath + "/api": {
		// types
		"Plugin":                 reflect.ValueOf((*api.Plugin)(nil)),
		"Kind":                   reflect.ValueOf((*api.Kind)(nil)),
		"Metadata":               reflect.ValueOf((*api.Metadata)(nil)),
		"Document":               reflect.ValueOf((*api.Document)(nil)),
		"Project":                reflect.ValueOf((*api.Project)(nil)),
		"Context":                reflect.ValueOf((*api.Context)(nil)),
		"Container":              reflect.ValueOf((*api.Container)(nil)),
		"CreateRequest":          reflect.ValueOf((*api.CreateRequest)(nil)),
		"Root":                   reflect.ValueOf((*api.Root)(nil)),
		"LoaderFuncs":            reflect.ValueOf((*api.LoaderFuncs)(nil)),
		"LegacyLoaderFuncs":      reflect.ValueOf((*api.LegacyLoaderFuncs)(nil)),
		"CreatorFuncs":           reflect.ValueOf((*api.CreatorFuncs)(nil)),
		"ActionFuncs":            reflect.ValueOf((*api.ActionFuncs)(nil)),
		"InventoryActionFuncs":   reflect.ValueOf((*api.InventoryActionFuncs)(nil)),
		"ThumbnailResolverFuncs": reflect.ValueOf((*api.ThumbnailResolverFuncs)(nil)),
		"HostFuncs":              reflect.ValueOf((*api.HostFuncs)(nil)),
		"ConfigFuncs":            reflect.ValueOf((*api.ConfigFuncs)(nil)),

		// values
		"KindLoader":            reflect.ValueOf(api.KindLoader),
		"KindCreator":           reflect.ValueOf(api.KindCreator),
		"KindAction":            reflect.ValueOf(api.KindAction),
		"KindInventoryAction":   reflect.ValueOf(api.KindInventoryAction),
		"KindThumbnailResolver": reflect.ValueOf(api.KindThumbnailResolver),
		"ContainerSchema":       reflect.ValueOf(api.ContainerSchema),
		"ContainerID":           reflect.ValueOf(api.ContainerID),
		"InstanceID":            reflect.ValueOf(api.InstanceID),
		"ErrNoCreatorRan":       reflect.ValueOf(&api.ErrNoCreatorRan).Elem(),

		// functions
		"SingleRoot": reflect.ValueOf(api.SingleRoot),
		"NamedRoots": reflect.ValueOf(api.NamedRoots),
		"ParseKind":  reflect.ValueOf(api.ParseKind),
		"Stringify":  reflect.ValueOf(api.Stringify),
	},
}
