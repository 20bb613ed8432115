package version

// Current defines the application version.
// It defaults to "dev" and can be overridden at build time with -ldflags -X.
var Current = "dev"

const AppName = "ThreatVeil"
const License = "Apache-2.0"
