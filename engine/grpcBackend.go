package engine

import (
	"context"
	"errors"
	"fmt"

	iface "TeethAnnotationServer/interface"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// InferMethod is the full gRPC method name served by the remote inference engine.
// Request and response are google.protobuf.Struct.
const InferMethod = "/inference.v1.InferenceService/Infer"

type GRPCBackend struct {
	conn    *grpc.ClientConn
	target  string
	modelID string
	names   []string
}

func NewGRPCBackend(target, modelID string, names []string, opts ...grpc.DialOption) (*GRPCBackend, error) {
	if target == "" {
		return nil, errors.New("grpc target cannot be empty")
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &GRPCBackend{
		conn:    conn,
		target:  target,
		modelID: modelID,
		names:   names,
	}, nil
}

func (g *GRPCBackend) Infer(ctx context.Context, image string, confidence float64) ([]iface.ResultSet, error) {
	req, err := structpb.NewStruct(map[string]any{
		"model_id":   g.modelID,
		"image":      image,
		"confidence": confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("build grpc request: %w", err)
	}
	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, InferMethod, req, out); err != nil {
		return nil, fmt.Errorf("grpc inference: %w", err)
	}
	return ResultSetsFromStruct(out, g.names)
}

// ResultSetsFromStruct reads {"results": [{"predictions": [{x, y, width, height, class_id, class, confidence}]}]}.
func ResultSetsFromStruct(s *structpb.Struct, names []string) ([]iface.ResultSet, error) {
	resultsVal, ok := s.GetFields()["results"]
	if !ok {
		return nil, errors.New("grpc response has no results field")
	}
	list := resultsVal.GetListValue()
	if list == nil {
		return nil, errors.New("grpc response results is not a list")
	}
	sets := make([]iface.ResultSet, 0, len(list.GetValues()))
	for i, setVal := range list.GetValues() {
		setStruct := setVal.GetStructValue()
		if setStruct == nil {
			return nil, fmt.Errorf("results[%d] is not an object", i)
		}
		preds := setStruct.GetFields()["predictions"].GetListValue().GetValues()
		dets := make([]iface.Detection, 0, len(preds))
		for j, predVal := range preds {
			fields := predVal.GetStructValue().GetFields()
			if fields == nil {
				return nil, fmt.Errorf("results[%d].predictions[%d] is not an object", i, j)
			}
			class := fields["class"].GetStringValue()
			classID := classIndex(names, class)
			if v, ok := fields["class_id"]; ok {
				classID = int(v.GetNumberValue())
			}
			dets = append(dets, iface.Detection{
				X:          fields["x"].GetNumberValue(),
				Y:          fields["y"].GetNumberValue(),
				Width:      fields["width"].GetNumberValue(),
				Height:     fields["height"].GetNumberValue(),
				ClassID:    classID,
				Class:      class,
				Confidence: fields["confidence"].GetNumberValue(),
			})
		}
		sets = append(sets, iface.ResultSet{Predictions: dets})
	}
	return sets, nil
}

func (g *GRPCBackend) ModelID() string {
	return g.modelID
}

func (g *GRPCBackend) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend: GRPC,
		ModelID: g.modelID,
		Names:   g.names,
	}
}

func (g *GRPCBackend) Close() error {
	return g.conn.Close()
}
