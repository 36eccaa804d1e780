package relay

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g. ":8080")
	ListenAddr string `toml:"listen_addr"`

	// Upstream generation endpoint URL (e.g. "http://127.0.0.1:5328/fapi/generate")
	UpstreamURL string `toml:"upstream_url"`

	// DBPath is the path to the SQLite database file. Empty means
	// in-memory storage; conversations are lost on restart.
	DBPath string `toml:"db_path"`

	// SystemPrompt overrides the default artifact-markup system prompt
	// sent to the generator. "-" disables the system message entirely.
	SystemPrompt string `toml:"system_prompt"`

	// OwnerID recorded on conversations created by the relay. Stands in
	// for a real identity system.
	OwnerID string `toml:"owner_id"`
}

// DefaultOwnerID is used when no owner identity is configured.
const DefaultOwnerID = "default"

// LoadConfig reads a TOML config file into a Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}
