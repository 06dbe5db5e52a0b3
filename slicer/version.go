package slicer

import "github.com/blang/semver"

// Version of the segmentation editing engine.
var Version = semver.MustParse("0.3.0")

// VersionString returns the human-readable release version.
func VersionString() string {
	return Version.String()
}
