package version

// version is overridable at build time:
//
//	go build -ldflags "-X github.com/hookfreight/hookfreight/internal/version.version=v1.2.3"
var version = "0.1.0-dev"

func Version() string {
	return version
}
