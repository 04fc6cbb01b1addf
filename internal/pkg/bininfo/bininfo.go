package bininfo

// Populated by -ldflags "-X" at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)
