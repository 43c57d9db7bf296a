package annotator

import (
	"context"
	"errors"
	"fmt"
	"time"

	iface "TeethAnnotationServer/interface"
	"TeethAnnotationServer/logger"
	"TeethAnnotationServer/monitor"

	"go.uber.org/zap"
)

// DefaultConfidence is the fixed threshold every request is inferred with.
const DefaultConfidence = 0.2

var ErrNoResultSets = errors.New("inference returned no result sets")

type Service struct {
	backend    iface.Backend
	confidence float64
}

func NewService(backend iface.Backend) *Service {
	return &Service{
		backend:    backend,
		confidence: DefaultConfidence,
	}
}

func (s *Service) Confidence() float64 {
	return s.confidence
}

func (s *Service) Backend() iface.Backend {
	return s.backend
}

// ProcessImage never returns an error: every failure is folded into the response.
func (s *Service) ProcessImage(ctx context.Context, req AnnotationRequest) AnnotationResponse {
	start := time.Now()
	outcome := s.detect(ctx, req.TeethImage)
	resp := outcome.Response()
	elapsed := time.Since(start)
	monitor.ObserveAnnotation(resp.Success, elapsed)

	log := logger.Log()
	if id, ok := RequestIDFrom(ctx); ok {
		log = logger.Request(id)
	}
	if err := outcome.Err(); err != nil {
		log.Warn("annotation failed", zap.String("model", s.backend.ModelID()), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		log.Info("annotation done", zap.String("model", s.backend.ModelID()), zap.Int("detections", len(resp.Results)), zap.Duration("elapsed", elapsed))
	}
	return resp
}

func (s *Service) detect(ctx context.Context, image string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Fail(fmt.Errorf("inference panic: %v", r))
		}
	}()
	// 推理一旦开始就不随客户端断开而取消
	sets, err := s.backend.Infer(context.WithoutCancel(ctx), image, s.confidence)
	if err != nil {
		return Fail(err)
	}
	if len(sets) == 0 {
		return Fail(ErrNoResultSets)
	}
	// only the first result set is used
	return Ok(sets[0].Predictions)
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
