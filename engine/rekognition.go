package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	iface "TeethAnnotationServer/interface"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"gocv.io/x/gocv"
)

type CustomLabelsAPI interface {
	DetectCustomLabels(ctx context.Context, params *rekognition.DetectCustomLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectCustomLabelsOutput, error)
}

// RekognitionBackend runs a Rekognition Custom Labels project version. The
// model id is the project version ARN.
type RekognitionBackend struct {
	client CustomLabelsAPI
	arn    string
	names  []string
}

func NewRekognitionBackend(ctx context.Context, region, projectVersionArn string, names []string) (*RekognitionBackend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewRekognitionBackendWithClient(rekognition.NewFromConfig(awsCfg), projectVersionArn, names), nil
}

func NewRekognitionBackendWithClient(client CustomLabelsAPI, projectVersionArn string, names []string) *RekognitionBackend {
	return &RekognitionBackend{
		client: client,
		arn:    projectVersionArn,
		names:  names,
	}
}

func (r *RekognitionBackend) Infer(ctx context.Context, img string, confidence float64) ([]iface.ResultSet, error) {
	data, err := DecodeBase64Image(img)
	if err != nil {
		return nil, err
	}
	// Rekognition 返回的是比例坐标，需要原图尺寸换算成像素
	width, height, err := imageSize(data)
	if err != nil {
		return nil, err
	}
	out, err := r.client.DetectCustomLabels(ctx, &rekognition.DetectCustomLabelsInput{
		ProjectVersionArn: aws.String(r.arn),
		Image:             &types.Image{Bytes: data},
		// Rekognition takes a percentage
		MinConfidence: aws.Float32(float32(confidence * 100)),
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectCustomLabels: %w", err)
	}
	if out == nil {
		return nil, errors.New("rekognition returned no output")
	}

	scaleX, scaleY := float64(width), float64(height)

	dets := make([]iface.Detection, 0, len(out.CustomLabels))
	for _, label := range out.CustomLabels {
		if label.Geometry == nil || label.Geometry.BoundingBox == nil {
			continue
		}
		bb := label.Geometry.BoundingBox
		w := float64(aws.ToFloat32(bb.Width)) * scaleX
		h := float64(aws.ToFloat32(bb.Height)) * scaleY
		name := aws.ToString(label.Name)
		dets = append(dets, iface.Detection{
			X:          float64(aws.ToFloat32(bb.Left))*scaleX + w/2,
			Y:          float64(aws.ToFloat32(bb.Top))*scaleY + h/2,
			Width:      w,
			Height:     h,
			ClassID:    classIndex(r.names, name),
			Class:      name,
			Confidence: float64(aws.ToFloat32(label.Confidence)) / 100,
		})
	}
	return []iface.ResultSet{{Predictions: dets}}, nil
}

// imageSize reads the header for JPEG/PNG and falls back to a full OpenCV
// decode for anything else.
func imageSize(data []byte) (int, int, error) {
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg.Width, cfg.Height, nil
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot determine image size: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return 0, 0, errors.New("cannot determine image size: unsupported image format")
	}
	return mat.Cols(), mat.Rows(), nil
}

func (r *RekognitionBackend) ModelID() string {
	return r.arn
}

func (r *RekognitionBackend) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend: Rekognition,
		ModelID: r.arn,
		Names:   r.names,
	}
}

func (r *RekognitionBackend) Close() error {
	return nil
}
