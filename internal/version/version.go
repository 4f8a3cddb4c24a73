package version

// Product names the binaries in user agents and version output.
const Product = "repo-backup-provisioner"

var (
	// Version is the semantic version (injected at build time).
	Version = "dev"
	// Commit is the git commit SHA (injected at build time).
	Commit = "unknown"
	// BuildDate is the build timestamp (injected at build time).
	BuildDate = "unknown"
)

// Info returns formatted version information.
func Info() string {
	return Version + " (" + Commit + ", built " + BuildDate + ")"
}

// AppID identifies this build to cloud SDKs, e.g. "repo-backup-provisioner/1.2.0".
func AppID() string {
	return Product + "/" + Version
}
