package nn

import (
	"os"
)

// LoadGraphFromFile reads an ONNX model file and builds a Graph on the
// given backend. The file contents live only for the duration of the
// LoadGraph call; they are not retained on success or failure.
func LoadGraphFromFile(b Backend, path string) (Graph, error) {
	model, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(CodeNotFound, "read model file", err)
	}
	g, err := b.LoadGraph(model, EncodingONNX, TargetCPU)
	if err != nil {
		return nil, err
	}
	return g, nil
}
