package version

// Version is overridden at build time with -ldflags "-X github.com/Nuklai/nuklai-contracts-bitcoin-form/version.Version=..."
var Version = "v0.1.0-dev"
