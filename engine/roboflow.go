package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	iface "TeethAnnotationServer/interface"

	"github.com/go-resty/resty/v2"
)

const roboflowInferPath = "/infer/object_detection"

type roboflowImage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type roboflowRequest struct {
	ModelID    string        `json:"model_id"`
	APIKey     string        `json:"api_key,omitempty"`
	Confidence float64       `json:"confidence"`
	Image      roboflowImage `json:"image"`
}

type roboflowPrediction struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
	ClassID    *int    `json:"class_id"`
}

type roboflowResponse struct {
	Predictions []roboflowPrediction `json:"predictions"`
}

type roboflowError struct {
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

// RoboflowBackend talks to a Roboflow inference server over its JSON API.
type RoboflowBackend struct {
	client  *resty.Client
	baseURL string
	modelID string
	apiKey  string
	names   []string
}

func NewRoboflowBackend(baseURL, modelID, apiKey string, names []string) (*RoboflowBackend, error) {
	if baseURL == "" {
		return nil, errors.New("roboflow base url cannot be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &RoboflowBackend{
		client:  client,
		baseURL: baseURL,
		modelID: modelID,
		apiKey:  apiKey,
		names:   names,
	}, nil
}

// SetTimeout bounds each inference call; zero keeps resty's default of no timeout.
func (r *RoboflowBackend) SetTimeout(d time.Duration) {
	r.client.SetTimeout(d)
}

func (r *RoboflowBackend) Infer(ctx context.Context, image string, confidence float64) ([]iface.ResultSet, error) {
	img := roboflowImage{Type: "base64", Value: stripDataURL(image)}
	if isURL(image) {
		img = roboflowImage{Type: "url", Value: image}
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(roboflowRequest{
			ModelID:    r.modelID,
			APIKey:     r.apiKey,
			Confidence: confidence,
			Image:      img,
		}).
		Post(roboflowInferPath)
	if err != nil {
		return nil, fmt.Errorf("roboflow request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("roboflow returned %s: %s", resp.Status(), errorMessage(resp.Body()))
	}
	return r.decode(resp.Body())
}

// decode accepts either a single response object or a list of them.
func (r *RoboflowBackend) decode(body []byte) ([]iface.ResultSet, error) {
	body = bytes.TrimSpace(body)
	var raw []roboflowResponse
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode roboflow response: %w", err)
		}
	} else {
		var single roboflowResponse
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode roboflow response: %w", err)
		}
		raw = []roboflowResponse{single}
	}

	sets := make([]iface.ResultSet, 0, len(raw))
	for _, res := range raw {
		preds := make([]iface.Detection, 0, len(res.Predictions))
		for _, p := range res.Predictions {
			classID := classIndex(r.names, p.Class)
			if p.ClassID != nil {
				classID = *p.ClassID
			}
			preds = append(preds, iface.Detection{
				X:          p.X,
				Y:          p.Y,
				Width:      p.Width,
				Height:     p.Height,
				ClassID:    classID,
				Class:      p.Class,
				Confidence: p.Confidence,
			})
		}
		sets = append(sets, iface.ResultSet{Predictions: preds})
	}
	return sets, nil
}

func errorMessage(body []byte) string {
	var e roboflowError
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Detail != nil {
			return fmt.Sprint(e.Detail)
		}
	}
	return strings.TrimSpace(string(body))
}

func (r *RoboflowBackend) ModelID() string {
	return r.modelID
}

func (r *RoboflowBackend) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend: Roboflow,
		ModelID: r.modelID,
		Names:   r.names,
	}
}

func (r *RoboflowBackend) Close() error {
	return nil
}
