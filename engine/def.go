package engine

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	iface "TeethAnnotationServer/interface"
)

const (
	Roboflow    = "roboflow"
	GRPC        = "grpc"
	Onnx        = "onnx"
	Rekognition = "rekognition"
)

var ErrUnknownBackend = errors.New("unknown inference backend")

func ReadLinesReadFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(b), "\n") {
		// 支持 Windows CRLF
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// LoadNames resolves class names given either inline or as a file path.
func LoadNames(names iface.NamesConf) ([]string, error) {
	if names.Data == nil {
		return nil, nil
	}
	if names.IsFile {
		path, ok := names.Data.(string)
		if !ok {
			return nil, fmt.Errorf("names file must be a string path, got %T", names.Data)
		}
		return ReadLinesReadFile(path)
	}
	rv := reflect.ValueOf(names.Data)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("names must be a slice or a file path, got %T", names.Data)
	}
	out := make([]string, rv.Len())
	for i := range out {
		s, ok := rv.Index(i).Interface().(string)
		if !ok {
			return nil, fmt.Errorf("names[%d] is %T, not string", i, rv.Index(i).Interface())
		}
		out[i] = s
	}
	return out, nil
}

func classIndex(names []string, class string) int {
	for i, n := range names {
		if n == class {
			return i
		}
	}
	return -1
}

// stripDataURL 去掉可能的 data:image/...;base64, 前缀
func stripDataURL(image string) string {
	if i := strings.Index(image, ","); i != -1 && strings.HasPrefix(image, "data:") {
		return image[i+1:]
	}
	return image
}

func isURL(image string) bool {
	return strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://")
}

func DecodeBase64Image(image string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(stripDataURL(image)))
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("decoded image is empty")
	}
	return data, nil
}
