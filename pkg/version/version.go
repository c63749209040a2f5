package version

// Current defines the application version.
// It defaults to "dev" and is set at release time with -ldflags "-X".
var Current = "dev"

// AppName is reported in user agents, telemetry resources and the CLI.
const AppName = "gridspawn"
