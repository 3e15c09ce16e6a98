// Package version holds the build version string.
package version

// Version is set at build time via -ldflags "-X casgate/internal/version.Version=...".
var Version = "dev"
