package config

// Version is the canonical version of the risk dashboard
const Version = "0.3.0"

// GetVersion returns the current version
func GetVersion() string {
	return Version
}
