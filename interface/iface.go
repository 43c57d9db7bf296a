package iface

import "context"

// Backend is the inference capability. Implementations are resolved once at
// startup and must be safe for concurrent Infer calls.
type Backend interface {
	Infer(ctx context.Context, image string, confidence float64) ([]ResultSet, error)
	ModelID() string
	CheckConfig() EngineConfig
	Close() error
}
