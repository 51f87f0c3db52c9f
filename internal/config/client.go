package config

import (
	"fmt"
	"os"
	"strings"
)

// Default configuration values for the codeshot CLI
const (
	DefaultServer = "localhost:5000"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// ClientConfig holds codeshot CLI configuration.
type ClientConfig struct {
	// Server is host[:port] of the signaling server, optionally with a scheme.
	Server string

	WebSocketURL string
	HealthURL    string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// ClientOptions for loading config with CLI flag overrides
type ClientOptions struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// LoadClient resolves CLI configuration: flag > env > default.
func LoadClient(opts ClientOptions) (*ClientConfig, error) {
	cfg := &ClientConfig{
		Server:     pick(opts.Server, "CODESHOT_SERVER", DefaultServer),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", ""),
	}

	wsScheme, httpScheme, host := "ws", "http", cfg.Server
	switch {
	case strings.HasPrefix(host, "https://"), strings.HasPrefix(host, "wss://"):
		wsScheme, httpScheme = "wss", "https"
		host = host[strings.Index(host, "://")+3:]
	case strings.HasPrefix(host, "http://"), strings.HasPrefix(host, "ws://"):
		host = host[strings.Index(host, "://")+3:]
	case strings.Contains(host, "://"):
		return nil, fmt.Errorf("unsupported server scheme in %q", cfg.Server)
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return nil, fmt.Errorf("empty server address")
	}

	cfg.WebSocketURL = fmt.Sprintf("%s://%s/ws", wsScheme, host)
	cfg.HealthURL = fmt.Sprintf("%s://%s/health", httpScheme, host)
	return cfg, nil
}

func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// GetSTUNServers returns STUN server URLs as strings
func (c *ClientConfig) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *ClientConfig) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *ClientConfig) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
