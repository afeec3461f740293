// Package utils provides helper functions, including version retrieval.
package utils

import (
	"runtime/debug"
)

const (
	unknownVersion     = "unknown"
	developmentVersion = "(devel)"
	revisionSettingKey = "vcs.revision"
	modifiedSettingKey = "vcs.modified"
	shortRevisionWidth = 12
)

// GetApplicationVersion determines the application version from the embedded
// Go build information: the module version when the binary was installed from
// a tagged release, otherwise the VCS revision the binary was built from.
func GetApplicationVersion() string {
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if !buildInfoAvailable {
		return unknownVersion
	}
	if buildInfo.Main.Version != "" && buildInfo.Main.Version != developmentVersion {
		return buildInfo.Main.Version
	}

	revisionValue := ""
	treeModified := false
	for _, buildSetting := range buildInfo.Settings {
		switch buildSetting.Key {
		case revisionSettingKey:
			revisionValue = buildSetting.Value
		case modifiedSettingKey:
			treeModified = buildSetting.Value == "true"
		}
	}
	if revisionValue == "" {
		return unknownVersion
	}
	if len(revisionValue) > shortRevisionWidth {
		revisionValue = revisionValue[:shortRevisionWidth]
	}
	if treeModified {
		revisionValue += "-dirty"
	}
	return revisionValue
}
