// Package version holds the application identity.
package version

const AppName = "Katu Bot"

// Version is overridden at build time with -ldflags "-X katu-bot/internal/version.Version=...".
var Version = "dev"
