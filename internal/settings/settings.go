// Package settings loads DaemonSettings (C9): the YAML file, distinct
// from the JSON forward registry, that controls log level, transport
// bind addresses, and cache/grace-period overrides.
package settings

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DaemonSettings is kubeportald's own runtime configuration, loaded once
// at startup.
type DaemonSettings struct {
	LogLevel               string        `yaml:"logLevel"`
	RPCListenAddress       string        `yaml:"rpcListenAddress"`
	HTTPListenAddress      string        `yaml:"httpListenAddress"`
	MCPListenAddress       string        `yaml:"mcpListenAddress"`
	KubeClientTTL          time.Duration `yaml:"kubeClientTTL"`
	PodListTTL             time.Duration `yaml:"podListTTL"`
	ConnectionGraceTimeout time.Duration `yaml:"connectionGraceTimeout"`
}

// Default returns the settings used as a base before loading the file.
// Every field has a sensible zero-value, so a missing settings file
// produces a fully-usable daemon rather than a half-configured one.
func Default() DaemonSettings {
	return DaemonSettings{
		LogLevel:               "info",
		RPCListenAddress:       "127.0.0.1:50051",
		HTTPListenAddress:      "127.0.0.1:50052",
		MCPListenAddress:       "",
		KubeClientTTL:          10 * time.Minute,
		PodListTTL:             30 * time.Second,
		ConnectionGraceTimeout: 5 * time.Second,
	}
}

// Load reads and parses the settings file at path. A missing file is not
// an error: Load returns Default(). Unlike the forward registry, a
// present-but-malformed settings file is never silently swallowed — it is
// returned to the caller, who must abort startup rather than run with
// ambiguous configuration.
func Load(path string) (DaemonSettings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return DaemonSettings{}, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DaemonSettings{}, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return cfg, nil
}
