package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"TeethAnnotationServer/engine/yolo"
	iface "TeethAnnotationServer/interface"

	"gocv.io/x/gocv"
)

// OnnxBackend runs a YOLOv8 ONNX export locally through OpenCV's DNN module.
type OnnxBackend struct {
	mu        sync.Mutex
	net       gocv.Net
	modelPath string
	names     []string
	inputSize int
	iou       float32
}

func NewOnnxBackend(modelPath string, names []string, inputSize int, iou float32) (*OnnxBackend, error) {
	if !strings.HasSuffix(modelPath, ".onnx") {
		return nil, fmt.Errorf("onnx backend only supports .onnx, got %s", modelPath)
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read onnx model %s", modelPath)
	}
	return &OnnxBackend{
		net:       net,
		modelPath: modelPath,
		names:     names,
		inputSize: inputSize,
		iou:       iou,
	}, nil
}

// Base64ToMat 将 base64 字符串（可带 data:image/... 前缀）转为 gocv.Mat
func Base64ToMat(b64 string) (gocv.Mat, error) {
	data, err := DecodeBase64Image(b64)
	if err != nil {
		return gocv.NewMat(), err
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), err
	}
	if mat.Empty() {
		// IMDecode 返回空 Mat 表示解码失败
		_ = mat.Close()
		return gocv.NewMat(), errors.New("decoded image is empty or unsupported format")
	}
	return mat, nil
}

func (o *OnnxBackend) Infer(ctx context.Context, img string, confidence float64) ([]iface.ResultSet, error) {
	mat, err := Base64ToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(o.inputSize, o.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	// Net 不是并发安全的
	o.mu.Lock()
	o.net.SetInput(blob, "")
	out := o.net.Forward("")
	o.mu.Unlock()
	defer out.Close()

	// [1, 4+classes, anchors]
	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected onnx output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read onnx output: %w", err)
	}
	sx := float64(mat.Cols()) / float64(o.inputSize)
	sy := float64(mat.Rows()) / float64(o.inputSize)
	boxes := yolo.NMS(yolo.Decode(data, dims[1], dims[2], confidence, sx, sy), float64(o.iou))

	dets := make([]iface.Detection, 0, len(boxes))
	for _, b := range boxes {
		det := iface.Detection{
			X:          b.CX,
			Y:          b.CY,
			Width:      b.W,
			Height:     b.H,
			ClassID:    b.ClassID,
			Confidence: b.Score,
		}
		if b.ClassID < len(o.names) {
			det.Class = o.names[b.ClassID]
		}
		dets = append(dets, det)
	}
	return []iface.ResultSet{{Predictions: dets}}, nil
}

func (o *OnnxBackend) ModelID() string {
	return o.modelPath
}

func (o *OnnxBackend) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend: Onnx,
		ModelID: o.modelPath,
		Names:   o.names,
	}
}

func (o *OnnxBackend) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.net.Close()
}
