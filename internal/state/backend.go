package state

import (
	"context"
	"fmt"
)

// DefaultLocalPath is where the local backend keeps the state document when
// the manifest does not say otherwise.
const DefaultLocalPath = ".shellform/state.json"

// Config selects and parameterizes a state backend. It mirrors the
// manifest's [state] table.
type Config struct {
	// Backend is "local" or "s3". Empty means local.
	Backend string `toml:"backend"`

	// Path is the state file location for the local backend.
	Path string `toml:"path"`

	// S3 backend settings.
	Bucket        string `toml:"bucket"`
	Key           string `toml:"key"`
	Region        string `toml:"region"`
	DynamoDBTable string `toml:"dynamodb_table"`
	Profile       string `toml:"profile"`
	Encrypt       bool   `toml:"encrypt"`
}

// NewBackend creates the backend the configuration names.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "local":
		path := cfg.Path
		if path == "" {
			path = DefaultLocalPath
		}
		return NewLocalBackend(path), nil
	case "s3":
		return newS3Backend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown state backend '%s'", cfg.Backend)
	}
}
