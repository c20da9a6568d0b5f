package version

import "runtime/debug"

// version is overridden at build time with -ldflags "-X chowspace/pkg/version.version=v1.2.3".
var version = "dev"

// Version reports the release tag, falling back to the module version recorded by go install.
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
