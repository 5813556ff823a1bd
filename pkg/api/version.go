package api

import (
	"fmt"
	"strconv"
	"strings"
)

type versionKind int

const (
	versionNumber versionKind = iota
	versionLatest
	versionMaster
)

// VersionSelector picks the version an Update moves a container to.
type VersionSelector struct {
	kind   versionKind
	number int
}

var (
	// LatestVersion selects the highest version of the subset.
	LatestVersion = VersionSelector{kind: versionLatest}
	// MasterVersion selects the subset's master version document.
	MasterVersion = VersionSelector{kind: versionMaster}
)

// VersionNumber selects an explicit version.
func VersionNumber(n int) VersionSelector {
	return VersionSelector{kind: versionNumber, number: n}
}

// ParseVersionSelector accepts "latest", "-1", "master" or a version number.
func ParseVersionSelector(value string) (VersionSelector, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "latest", "-1":
		return LatestVersion, nil
	case "master":
		return MasterVersion, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), "v"))
	if err != nil || n < 0 {
		return VersionSelector{}, fmt.Errorf("invalid version %q", value)
	}
	return VersionNumber(n), nil
}

// IsLatest reports whether v selects the latest version.
func (v VersionSelector) IsLatest() bool { return v.kind == versionLatest }

// IsMaster reports whether v selects the master version.
func (v VersionSelector) IsMaster() bool { return v.kind == versionMaster }

// Number returns the explicit version number, if any.
func (v VersionSelector) Number() (int, bool) {
	return v.number, v.kind == versionNumber
}

func (v VersionSelector) String() string {
	switch v.kind {
	case versionLatest:
		return "latest"
	case versionMaster:
		return "master"
	}
	return strconv.Itoa(v.number)
}
