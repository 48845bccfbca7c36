package version

// Version describes the sftpblast version.
var (
	version    string
	build      string
	releaseTag string
)

// Version returns the version
func Version() string {
	return version
}

// Build returns the build number
func Build() string {
	if len(build) >= 8 {
		return build[0:8]
	}
	return build
}

func ReleaseVersion() string {
	return releaseTag
}

// String returns a composed string of version and build number
func String() string {
	if ReleaseVersion() == "" {
		return Version() + "-" + Build()
	}
	return ReleaseVersion()
}
