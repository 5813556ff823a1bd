package api

import (
	"fmt"
	"strings"
)

// Kind tags a plug-in with the role it plays in the pipeline. Discovery
// filters on this tag instead of on type names.
type Kind int

const (
	KindUnknown Kind = iota
	KindLoader
	KindCreator
	KindAction
	KindInventoryAction
	KindThumbnailResolver
)

var kindNames = map[Kind]string{
	KindLoader:            "loader",
	KindCreator:           "creator",
	KindAction:            "action",
	KindInventoryAction:   "inventory-action",
	KindThumbnailResolver: "thumbnail-resolver",
}

// Kinds lists every known plug-in kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindLoader, KindCreator, KindAction, KindInventoryAction, KindThumbnailResolver}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind converts a kind name such as "loader" or "inventory-action" back
// into a Kind. Underscores are accepted in place of dashes.
func ParseKind(name string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for kind, candidate := range kindNames {
		if candidate == normalized {
			return kind, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown plugin kind %q", name)
}
