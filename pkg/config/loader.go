package config

import (
	"context"
	"os"

	"landkeeper/pkg/integration"

	"gopkg.in/yaml.v3"
)

// ServerSeed is one provisioning registry entry a gameserver process
// registers itself as, or a matchmaking process pre-seeds before any
// heartbeat has arrived (spec §4.5 "Provisioning Registry").
type ServerSeed struct {
	ServerID    string   `yaml:"serverId"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	ConnectHost string   `yaml:"connectHost,omitempty"`
	ConnectPort int      `yaml:"connectPort,omitempty"`
	LandTypes   []string `yaml:"landTypes"`
}

// LoadServerSeeds loads a static list of provisioning registry entries from
// a YAML file, used to bootstrap a matchmaking process's view of available
// gameservers before any of them has sent its first heartbeat. This
// function is protected by both circuit breaker and retry patterns to
// prevent cascade failures and handle transient file system issues.
//
// Parameters:
//   - filename: Path to the YAML file containing server seed entries
//
// Returns:
//   - []ServerSeed: Slice of parsed provisioning registry entries
//   - error: File read, YAML parsing, circuit breaker, or retry errors if any occurred
func LoadServerSeeds(filename string) ([]ServerSeed, error) {
	var seeds []ServerSeed
	ctx := context.Background()

	err := integration.ExecuteConfigOperation(ctx, func(ctx context.Context) error {
		data, err := os.ReadFile(filename)
		if err != nil {
			return err
		}

		if err := yaml.Unmarshal(data, &seeds); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return seeds, nil
}
