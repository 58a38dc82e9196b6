// Package accelerator detects whether a non-CPU compute device is present,
// the single fact §4.5's device-selection table hinges on.
package accelerator

import (
	"os"
)

// forceEnv overrides detection for tests and for hosts where the device
// node layout is non-standard; "1" forces present, "0" forces absent.
const forceEnv = "MODELCONTAINER_FORCE_ACCELERATOR"

// devicePaths are checked in order; the first one that stats successfully
// is taken as evidence of an accelerator.
var devicePaths = []string{
	"/dev/nvidia0",
	"/dev/nvidiactl",
}

// Present reports whether an accelerator is available to this process.
// Detection order: MODELCONTAINER_FORCE_ACCELERATOR, then NVIDIA_VISIBLE_DEVICES,
// then the presence of an nvidia device node.
func Present() bool {
	switch os.Getenv(forceEnv) {
	case "1":
		return true
	case "0":
		return false
	}

	if v := os.Getenv("NVIDIA_VISIBLE_DEVICES"); v != "" && v != "none" {
		return true
	}

	for _, path := range devicePaths {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}
