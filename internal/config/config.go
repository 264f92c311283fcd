package config

import (
	"fmt"
	"net/url"
	"os"
)

// Default configuration values.
const (
	DefaultServerURL = "ws://localhost:3001/ws"
	DefaultSTUN      = "stun:stun1.l.google.com:19302"
	DefaultTURN      = "turn:openrelay.metered.ca:80"
	DefaultTURNUser  = "openrelayproject"
	DefaultTURNPass  = "openrelayproject"
)

// Config holds client configuration.
type Config struct {
	// ServerURL is the websocket URL of the signaling server.
	ServerURL string

	// ICE servers for the peer link.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI flag overrides into Load.
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	serverURL := firstOf(opts.ServerURL, os.Getenv("MEETLY_SERVER"), DefaultServerURL)
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}

	cfg := &Config{
		ServerURL:  serverURL,
		STUNServer: firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer: firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN),
		TURNUser:   firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser),
		TURNPass:   firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass),
	}
	return cfg, nil
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{c.TURNServer}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
