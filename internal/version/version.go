package version

// Version is the current version of codeshot and codeshot-server.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/saishdhuri8/NFC4-CodeShot/internal/version.Version=v1.0.0'"
var Version = "dev"
