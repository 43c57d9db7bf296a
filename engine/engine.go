package engine

import (
	"context"
	"fmt"
	"strings"

	"TeethAnnotationServer/config"
	iface "TeethAnnotationServer/interface"
	"TeethAnnotationServer/logger"

	"go.uber.org/zap"
)

// LoadEngine resolves the configured model once. The returned backend is
// shared by every request for the life of the process.
func LoadEngine(ctx context.Context, cfg config.Config) (iface.Backend, error) {
	names, err := LoadNames(namesConf(cfg))
	if err != nil {
		return nil, fmt.Errorf("load class names: %w", err)
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("model id cannot be empty")
	}

	var backend iface.Backend
	switch strings.ToLower(cfg.InferenceBackend) {
	case Roboflow, "":
		backend, err = NewRoboflowBackend(cfg.BaseURL, cfg.ModelID, cfg.APIKey, names)
	case GRPC:
		backend, err = NewGRPCBackend(cfg.BaseURL, cfg.ModelID, names)
	case Onnx:
		backend, err = NewOnnxBackend(cfg.ModelID, names, cfg.InputSize, cfg.Iou)
	case Rekognition:
		backend, err = NewRekognitionBackend(ctx, cfg.AWSRegion, cfg.ModelID, names)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.InferenceBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s backend: %w", cfg.InferenceBackend, err)
	}
	logger.Log().Info("Inference engine loaded",
		zap.String("backend", backend.CheckConfig().Backend),
		zap.String("model", backend.ModelID()),
		zap.Int("names", len(names)))
	return backend, nil
}

func namesConf(cfg config.Config) iface.NamesConf {
	if cfg.NamesFile != "" {
		return iface.NamesConf{IsFile: true, Data: cfg.NamesFile}
	}
	return iface.NamesConf{IsFile: false, Data: cfg.Names}
}
