// Package nn defines the inference backend contract used by the
// classification pipeline: a graph is built from raw model bytes, an
// execution context is bound to it, and a single inference pass flows
// through set-input, compute and get-output. Handles are opaque; the
// pipeline only ever sees the five operations below.
package nn

import (
	"errors"
	"fmt"
)

// Code classifies a backend failure. The zero value is success; every
// other value aborts the current run.
type Code uint32

const (
	CodeSuccess Code = iota
	CodeInvalidArgument
	CodeInvalidEncoding
	CodeMissingMemory
	CodeBusy
	CodeRuntimeError
	CodeUnsupportedOperation
	CodeTooLarge
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeInvalidEncoding:
		return "invalid encoding"
	case CodeMissingMemory:
		return "missing memory"
	case CodeBusy:
		return "busy"
	case CodeRuntimeError:
		return "runtime error"
	case CodeUnsupportedOperation:
		return "unsupported operation"
	case CodeTooLarge:
		return "too large"
	case CodeNotFound:
		return "not found"
	}
	return fmt.Sprintf("unknown code %d", uint32(c))
}

// Error is a failed backend operation. Op names the operation that
// failed, Err optionally carries the underlying cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf extracts the backend code from err, or CodeRuntimeError if
// err carries none.
func CodeOf(err error) Code {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeRuntimeError
}

// GraphEncoding identifies the model interchange format of the bytes
// handed to LoadGraph.
type GraphEncoding uint32

const (
	EncodingONNX GraphEncoding = iota
)

func (e GraphEncoding) String() string {
	if e == EncodingONNX {
		return "onnx"
	}
	return fmt.Sprintf("unknown encoding %d", uint32(e))
}

// ExecutionTarget selects the device a graph should execute on.
type ExecutionTarget uint32

const (
	TargetCPU ExecutionTarget = iota
	TargetGPU
)

func (t ExecutionTarget) String() string {
	switch t {
	case TargetCPU:
		return "cpu"
	case TargetGPU:
		return "gpu"
	}
	return fmt.Sprintf("unknown target %d", uint32(t))
}

// TensorType is the element type of a tensor's flat data buffer.
type TensorType uint32

const (
	TensorTypeF32 TensorType = iota
	TensorTypeF16
	TensorTypeU8
	TensorTypeI32
)

// ElemSize returns the byte width of one element, or 0 for an unknown
// type.
func (t TensorType) ElemSize() int {
	switch t {
	case TensorTypeF32, TensorTypeI32:
		return 4
	case TensorTypeF16:
		return 2
	case TensorTypeU8:
		return 1
	}
	return 0
}

// Tensor describes one input: an ordered dimension sequence, an element
// type and the flat data buffer in channel-major byte order.
type Tensor struct {
	Dims []uint32
	Type TensorType
	Data []byte
}

// ByteLen returns the byte count the dimensions and element type imply.
func (t *Tensor) ByteLen() int {
	n := t.Type.ElemSize()
	for _, d := range t.Dims {
		n *= int(d)
	}
	return n
}

// Graph is an opaque handle for a loaded, ready-to-run network. A Graph
// may back any number of sequential runs; Close releases it.
type Graph interface {
	Close() error
}

// ExecutionContext is an opaque handle for one inference run's mutable
// backend state, bound to exactly one Graph. It must not be shared
// between concurrent runs.
type ExecutionContext interface {
	Close() error
}

// Backend is the five-call inference contract. Every operation either
// succeeds or returns a *Error; a non-success result is fatal for the
// current run, there is no operation-level retry.
type Backend interface {
	// LoadGraph builds a Graph from raw model bytes. The bytes are fully
	// consumed during the call; the backend never retains the slice.
	LoadGraph(model []byte, encoding GraphEncoding, target ExecutionTarget) (Graph, error)

	// InitExecutionContext creates the mutable state for one run of g.
	InitExecutionContext(g Graph) (ExecutionContext, error)

	// SetInput binds the input tensor at index. The tensor's data length
	// must match its dimensions and element type exactly.
	SetInput(ctx ExecutionContext, index int, t *Tensor) error

	// Compute executes the graph. It blocks until inference completes or
	// fails outright; there is no cancellation.
	Compute(ctx ExecutionContext) error

	// GetOutput copies the output at index into dst and returns the byte
	// count actually produced. A dst too small for the output fails with
	// CodeTooLarge.
	GetOutput(ctx ExecutionContext, index int, dst []byte) (int, error)
}
