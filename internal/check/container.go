package check

import "os"

// containerMarkers are filesystem markers left by container runtimes that
// virtualize the mount tables, making the fstab membership check
// meaningless.
var containerMarkers = []string{
	"/.dockerenv",
	"/run/.containerenv",
}

// InContainer reports whether the process appears to run inside a container
// context that is known to virtualize mounts.
func InContainer() bool {
	for _, marker := range containerMarkers {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	return false
}
