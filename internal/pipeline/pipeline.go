// Package pipeline owns the end-to-end classification sequence: load
// the graph, bind an execution context, parse labels, build the input
// tensor, run inference and reduce the scores to one label. A run
// either fully succeeds with exactly one owned label or fully fails
// with every acquired resource released.
package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/edgenn/classify/internal/labels"
	"github.com/edgenn/classify/internal/nn"
	"github.com/edgenn/classify/internal/placement"
	"github.com/edgenn/classify/internal/postprocess"
	"github.com/edgenn/classify/internal/preprocess"
)

// Fixed model interface: SqueezeNet-style [1,3,224,224] float32 input
// and a 1000-class score vector out. These are configuration constants,
// not negotiated with the backend.
const (
	InputHeight   = 224
	InputWidth    = 224
	InputChannels = 3

	NumClasses = 1000
)

var (
	// InputTensorBytes is the exact byte length the input tensor must
	// have before the backend is invoked.
	InputTensorBytes = preprocess.TensorBytes(InputHeight, InputWidth)
	// OutputBytes is the exact byte length of the score vector.
	OutputBytes = NumClasses * 4
)

// Error kinds. Every failure returned by Run wraps exactly one of
// these; errors.Is picks them out.
var (
	ErrIO         = errors.New("i/o failure")
	ErrAllocation = errors.New("allocation failure")
	ErrBackend    = errors.New("backend failure")
	ErrFormat     = errors.New("format mismatch")
)

// ExportName is the identifier this function is exported under for the
// placement runtime.
const ExportName = "run_inference"

func init() {
	placement.Register(ExportName, "edge")
}

// Config locates the run's inputs.
type Config struct {
	ModelPath  string
	LabelsPath string
	ImagePath  string
	// Logger receives progress lines. Nil discards them.
	Logger *slog.Logger
}

// Result is a finished classification. Ownership transfers to the
// caller when Run returns; the pipeline retains nothing.
type Result struct {
	// Label is an independently owned copy of the winning table entry.
	Label string
	// Class is the winning class index.
	Class int
	// Confidence is the softmax probability of the winning class.
	Confidence float32
}

// Run executes one classification over backend. Execution is strictly
// sequential; the first failing step aborts the rest and control
// converges on a single cleanup stage that releases everything acquired
// so far.
func Run(backend nn.Backend, cfg Config) (*Result, error) {
	r := &runner{
		backend:     backend,
		loadGraph:   nn.LoadGraphFromFile,
		loadLabels:  labels.Load,
		buildTensor: preprocess.BuildInputTensorFile,
		log:         cfg.Logger,
	}
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.run(cfg)
}

// runner carries the orchestration seams so tests can substitute the
// file-backed steps and the backend.
type runner struct {
	backend     nn.Backend
	loadGraph   func(nn.Backend, string) (nn.Graph, error)
	loadLabels  func(string) (*labels.Table, error)
	buildTensor func(path string, height, width int) ([]byte, int, error)
	log         *slog.Logger
}

// releaseStack collects release actions for acquired resources and runs
// them once, most recently acquired first, on every exit path.
type releaseStack struct {
	releases []func()
}

func (s *releaseStack) push(f func()) {
	s.releases = append(s.releases, f)
}

func (s *releaseStack) releaseAll() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

func (r *runner) run(cfg Config) (*Result, error) {
	var cleanup releaseStack
	defer cleanup.releaseAll()

	// Init -> GraphLoaded
	graph, err := r.loadGraph(r.backend, cfg.ModelPath)
	if err != nil {
		return nil, stepErr("load model graph", err)
	}
	cleanup.push(func() { graph.Close() })
	r.log.Info("loaded model graph", "model", cfg.ModelPath)

	// GraphLoaded -> ContextReady
	execCtx, err := r.backend.InitExecutionContext(graph)
	if err != nil {
		return nil, stepErr("init execution context", err)
	}
	cleanup.push(func() { execCtx.Close() })
	r.log.Info("created execution context")

	// ContextReady -> LabelsReady
	table, err := r.loadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, stepErr("load labels", err)
	}
	r.log.Info("parsed labels", "count", table.Len())

	// LabelsReady -> TensorReady
	tensorBuf, written, err := r.buildTensor(cfg.ImagePath, InputHeight, InputWidth)
	if err != nil {
		return nil, stepErr("build input tensor", err)
	}
	if written != InputTensorBytes {
		return nil, fmt.Errorf("build input tensor: %w: wrote %d bytes, want %d",
			ErrFormat, written, InputTensorBytes)
	}
	r.log.Info("built input tensor", "bytes", written)

	// TensorReady -> InputSet
	input := &nn.Tensor{
		Dims: []uint32{1, InputChannels, InputHeight, InputWidth},
		Type: nn.TensorTypeF32,
		Data: tensorBuf,
	}
	if err := r.backend.SetInput(execCtx, 0, input); err != nil {
		return nil, stepErr("set input", err)
	}

	// InputSet -> Computed
	if err := r.backend.Compute(execCtx); err != nil {
		return nil, stepErr("compute", err)
	}

	// Computed -> OutputRead
	outBuf := make([]byte, OutputBytes)
	outLen, err := r.backend.GetOutput(execCtx, 0, outBuf)
	if err != nil {
		return nil, stepErr("get output", err)
	}
	if outLen != OutputBytes {
		return nil, fmt.Errorf("get output: %w: backend produced %d bytes, want %d",
			ErrFormat, outLen, OutputBytes)
	}
	r.log.Info("executed graph inference", "output_bytes", outLen)

	// OutputRead -> Classified
	scores := decodeScores(outBuf)
	probs := postprocess.Softmax(scores)
	class := postprocess.Argmax(probs)
	label, err := table.At(class)
	if err != nil {
		return nil, fmt.Errorf("select label: %w: %v", ErrFormat, err)
	}

	// Classified -> Done. The label is an owned copy; the table's
	// backing buffer is free to go.
	result := &Result{
		Label:      label,
		Class:      class,
		Confidence: probs[class],
	}
	r.log.Info("classified image", "label", result.Label, "class", result.Class,
		"confidence", result.Confidence)
	return result, nil
}

func decodeScores(buf []byte) []float32 {
	scores := make([]float32, len(buf)/4)
	for i := range scores {
		scores[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return scores
}

// stepErr wraps err with the pipeline error kind its backend code
// implies and names the failing step.
func stepErr(step string, err error) error {
	var kind error
	var be *nn.Error
	if errors.As(err, &be) {
		switch be.Code {
		case nn.CodeNotFound:
			kind = ErrIO
		case nn.CodeMissingMemory:
			kind = ErrAllocation
		default:
			kind = ErrBackend
		}
	} else if errors.Is(err, ErrFormat) || isZeroLabels(err) {
		kind = ErrFormat
	} else {
		kind = ErrIO
	}
	return fmt.Errorf("%s: %w: %v", step, kind, err)
}

func isZeroLabels(err error) bool {
	return err != nil && errors.Is(err, labels.ErrNoLabels)
}
