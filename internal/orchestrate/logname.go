package orchestrate

import (
	"strings"

	"classboot/internal/config"
	"classboot/internal/manifest"
)

// LogFileName derives the log file name for loc. Under LogNamingDirname it is
// "<dirname>.log" and may collide between sub-projects. Under
// LogNamingRelpath the path relative to stagingRoot is joined with "__".
func LogFileName(loc manifest.Location, naming config.LogNaming, stagingRoot string) string {
	if naming == config.LogNamingRelpath && stagingRoot != "" {
		if rel := loc.RelDir(stagingRoot); rel != "." && rel != "" {
			return strings.ReplaceAll(rel, "/", "__") + ".log"
		}
	}
	return loc.DirName() + ".log"
}
