package nn

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// ORTConfig configures the ONNX Runtime backend.
type ORTConfig struct {
	// LibraryPath overrides the onnxruntime shared library location.
	// Empty means the platform default search path.
	LibraryPath string
	// InputName and OutputName are the graph's I/O node names. Empty
	// defaults to "input"/"output".
	InputName  string
	OutputName string
}

// ORTBackend implements Backend over ONNX Runtime. One backend owns the
// process-wide ORT environment; Close tears it down.
type ORTBackend struct {
	inputName  string
	outputName string
}

// NewORTBackend initializes the ONNX Runtime environment.
func NewORTBackend(cfg ORTConfig) (*ORTBackend, error) {
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, newError(CodeRuntimeError, "initialize onnxruntime environment", err)
	}
	b := &ORTBackend{
		inputName:  cfg.InputName,
		outputName: cfg.OutputName,
	}
	if b.inputName == "" {
		b.inputName = "input"
	}
	if b.outputName == "" {
		b.outputName = "output"
	}
	return b, nil
}

// Close destroys the ORT environment. Graphs and contexts must be
// closed first.
func (b *ORTBackend) Close() error {
	if err := ort.DestroyEnvironment(); err != nil {
		return newError(CodeRuntimeError, "destroy onnxruntime environment", err)
	}
	return nil
}

type ortGraph struct {
	session *ort.DynamicAdvancedSession
}

func (g *ortGraph) Close() error {
	if g.session == nil {
		return nil
	}
	err := g.session.Destroy()
	g.session = nil
	if err != nil {
		return newError(CodeRuntimeError, "destroy session", err)
	}
	return nil
}

type ortContext struct {
	graph  *ortGraph
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
}

func (c *ortContext) Close() error {
	var firstErr error
	if c.input != nil {
		if err := c.input.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.input = nil
	}
	if c.output != nil {
		if err := c.output.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.output = nil
	}
	if firstErr != nil {
		return newError(CodeRuntimeError, "destroy context tensors", firstErr)
	}
	return nil
}

func (b *ORTBackend) LoadGraph(model []byte, encoding GraphEncoding, target ExecutionTarget) (Graph, error) {
	if len(model) == 0 {
		return nil, newError(CodeInvalidArgument, "load graph", fmt.Errorf("empty model buffer"))
	}
	if encoding != EncodingONNX {
		return nil, newError(CodeInvalidEncoding, "load graph", fmt.Errorf("encoding %s not supported", encoding))
	}
	if target != TargetCPU {
		return nil, newError(CodeUnsupportedOperation, "load graph", fmt.Errorf("target %s not supported", target))
	}
	// The session copies the model bytes during creation; the caller's
	// buffer is not retained.
	session, err := ort.NewDynamicAdvancedSessionWithONNXData(model,
		[]string{b.inputName}, []string{b.outputName}, nil)
	if err != nil {
		return nil, newError(ortCode(err), "load graph", err)
	}
	return &ortGraph{session: session}, nil
}

func (b *ORTBackend) InitExecutionContext(g Graph) (ExecutionContext, error) {
	og, ok := g.(*ortGraph)
	if !ok || og.session == nil {
		return nil, newError(CodeInvalidArgument, "init execution context", fmt.Errorf("graph does not belong to this backend"))
	}
	return &ortContext{graph: og}, nil
}

func (b *ORTBackend) SetInput(ctx ExecutionContext, index int, t *Tensor) error {
	oc, ok := ctx.(*ortContext)
	if !ok {
		return newError(CodeInvalidArgument, "set input", fmt.Errorf("context does not belong to this backend"))
	}
	if index != 0 {
		return newError(CodeUnsupportedOperation, "set input", fmt.Errorf("input index %d not supported", index))
	}
	if t.Type != TensorTypeF32 {
		return newError(CodeUnsupportedOperation, "set input", fmt.Errorf("element type %d not supported", t.Type))
	}
	if len(t.Data) != t.ByteLen() {
		return newError(CodeInvalidArgument, "set input",
			fmt.Errorf("tensor data is %d bytes, dimensions imply %d", len(t.Data), t.ByteLen()))
	}
	data := make([]float32, len(t.Data)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
	}
	dims := make([]int64, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = int64(d)
	}
	input, err := ort.NewTensor(ort.NewShape(dims...), data)
	if err != nil {
		return newError(ortCode(err), "set input", err)
	}
	if oc.input != nil {
		oc.input.Destroy()
	}
	oc.input = input
	return nil
}

func (b *ORTBackend) Compute(ctx ExecutionContext) error {
	oc, ok := ctx.(*ortContext)
	if !ok {
		return newError(CodeInvalidArgument, "compute", fmt.Errorf("context does not belong to this backend"))
	}
	if oc.input == nil {
		return newError(CodeInvalidArgument, "compute", fmt.Errorf("no input set"))
	}
	// A nil output entry lets the session allocate the output tensor,
	// which the context then owns until Close.
	outputs := []ort.ArbitraryTensor{nil}
	err := oc.graph.session.Run([]ort.ArbitraryTensor{oc.input}, outputs)
	if err != nil {
		return newError(ortCode(err), "compute", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		outputs[0].Destroy()
		return newError(CodeUnsupportedOperation, "compute", fmt.Errorf("output is not a float32 tensor"))
	}
	if oc.output != nil {
		oc.output.Destroy()
	}
	oc.output = out
	return nil
}

func (b *ORTBackend) GetOutput(ctx ExecutionContext, index int, dst []byte) (int, error) {
	oc, ok := ctx.(*ortContext)
	if !ok {
		return 0, newError(CodeInvalidArgument, "get output", fmt.Errorf("context does not belong to this backend"))
	}
	if index != 0 {
		return 0, newError(CodeUnsupportedOperation, "get output", fmt.Errorf("output index %d not supported", index))
	}
	if oc.output == nil {
		return 0, newError(CodeRuntimeError, "get output", fmt.Errorf("compute has not produced an output"))
	}
	data := oc.output.GetData()
	n := len(data) * 4
	if n > len(dst) {
		return 0, newError(CodeTooLarge, "get output",
			fmt.Errorf("output is %d bytes, buffer holds %d", n, len(dst)))
	}
	for i, v := range data {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return n, nil
}

// ortCode guesses a taxonomy code from an onnxruntime error string.
// ORT reports failures as opaque status messages, so this is a best
// effort; anything unrecognized is a runtime error.
func ortCode(err error) Code {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"):
		return CodeNotFound
	case strings.Contains(msg, "protobuf"), strings.Contains(msg, "invalid model"):
		return CodeInvalidEncoding
	case strings.Contains(msg, "alloc"), strings.Contains(msg, "memory"):
		return CodeMissingMemory
	default:
		return CodeRuntimeError
	}
}
