//go:build !cgo

package embedding

import "errors"

// NewONNX reports that the binary was built without cgo.
func NewONNX(ONNXConfig) (Embedder, error) {
	return nil, errors.New("embedding: onnx provider requires a cgo build")
}
