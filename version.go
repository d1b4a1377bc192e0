package transcache

// Version information for transcache.
// These values can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/ZaguanLabs/transcache.GitCommit=$(git rev-parse HEAD)"
const (
	// Name is the service name reported by the health endpoint.
	Name = "translation-service"

	// Description is a short description of the application.
	Description = "Cached, batched machine translation over HTTP"

	// Version is the semantic version of the application.
	Version = "1.0.0"

	// Repository is the source code repository URL.
	Repository = "https://github.com/ZaguanLabs/transcache"
)

// BuildInfo contains build-time information.
var (
	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// FullVersion returns the version string with optional build info.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns a user agent string for outbound engine requests.
func UserAgent() string {
	return "transcache/" + Version
}
