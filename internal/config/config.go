// Package config holds the small pieces of flag/env parsing shared by
// the domain-registry and agent command-line entry points.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fieldmesh/agentreg/pkg/wire"
)

// EnvOrDefault returns the named environment variable, or def if unset
// or empty.
func EnvOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// ParseAgentType maps a CLI-facing role name to its wire AgentType.
func ParseAgentType(name string) (wire.AgentType, error) {
	switch strings.ToLower(name) {
	case "domain":
		return wire.TypeDomain, nil
	case "interactive":
		return wire.TypeInteractive, nil
	case "audiomixer", "audio-mixer":
		return wire.TypeAudioMixer, nil
	case "avatarmixer", "avatar-mixer":
		return wire.TypeAvatarMixer, nil
	case "voxelserver", "voxel-server":
		return wire.TypeVoxelServer, nil
	default:
		return 0, fmt.Errorf("config: unknown agent type %q", name)
	}
}

// ParseInterestList parses a comma-separated list of agent type names
// into their wire representation, used for the agent binary's
// --interest flag.
func ParseInterestList(csv string) ([]wire.AgentType, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	types := make([]wire.AgentType, 0, len(parts))
	for _, p := range parts {
		t, err := ParseAgentType(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
