// Package onnx runs a sentence-transformer model locally through ONNX
// Runtime and mean-pools its token embeddings into one vector per text.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"pdfchat/internal/embedding"
)

const (
	DefaultMaxSeqLen = 256
	defaultHidden    = 384
)

type Config struct {
	ModelName     string
	ModelPath     string
	VocabPath     string
	SharedLibPath string
	MaxSeqLen     int
}

// Embedder lazily loads the model on first use. Inference is serialized
// because the input and output tensors are shared.
type Embedder struct {
	mu sync.Mutex

	cfg Config

	tokenizer *Tokenizer
	session   *ort.AdvancedSession
	inputs    map[string]*ort.Tensor[int64]
	output    *ort.Tensor[float32]
	hidden    int
	inited    bool
}

func New(cfg Config) *Embedder {
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = DefaultMaxSeqLen
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "all-MiniLM-L6-v2"
	}
	return &Embedder{cfg: cfg}
}

func (e *Embedder) Model() string { return "onnx-" + e.cfg.ModelName }

func (e *Embedder) initLocked() error {
	if e.inited {
		return nil
	}

	tok, err := LoadTokenizer(e.cfg.VocabPath)
	if err != nil {
		return err
	}

	if e.cfg.SharedLibPath != "" {
		ort.SetSharedLibraryPath(e.cfg.SharedLibPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx init environment: %w", err)
		}
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(e.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	hidden := defaultHidden
	if dims := outputInfo[0].Dimensions; len(dims) == 3 && dims[2] > 0 {
		hidden = int(dims[2])
	}

	seq := int64(e.cfg.MaxSeqLen)
	inputs := make(map[string]*ort.Tensor[int64], len(inputInfo))
	inputNames := make([]string, 0, len(inputInfo))
	inputValues := make([]ort.Value, 0, len(inputInfo))
	destroy := func() {
		for _, t := range inputs {
			_ = t.Destroy()
		}
	}
	for _, info := range inputInfo {
		switch info.Name {
		case "input_ids", "attention_mask", "token_type_ids":
		default:
			destroy()
			return fmt.Errorf("onnx model has unsupported input %q", info.Name)
		}
		t, err := ort.NewEmptyTensor[int64](ort.NewShape(1, seq))
		if err != nil {
			destroy()
			return fmt.Errorf("onnx new input tensor: %w", err)
		}
		inputs[info.Name] = t
		inputNames = append(inputNames, info.Name)
		inputValues = append(inputValues, t)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seq, int64(hidden)))
	if err != nil {
		destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(e.cfg.ModelPath, inputNames, []string{outputInfo[0].Name},
		inputValues, []ort.Value{output}, nil)
	if err != nil {
		_ = output.Destroy()
		destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}

	e.tokenizer = tok
	e.inputs = inputs
	e.output = output
	e.session = session
	e.hidden = hidden
	e.inited = true
	return nil
}

func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.runLocked(text)
}

func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.runLocked(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *Embedder) runLocked(text string) ([]float32, error) {
	enc := e.tokenizer.Encode(text, e.cfg.MaxSeqLen)
	for name, t := range e.inputs {
		switch name {
		case "input_ids":
			copy(t.GetData(), enc.IDs)
		case "attention_mask":
			copy(t.GetData(), enc.AttentionMask)
		case "token_type_ids":
			copy(t.GetData(), enc.TypeIDs)
		}
	}
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	vec := MeanPool(e.output.GetData(), enc.AttentionMask, e.hidden)
	embedding.Normalize(vec)
	return vec, nil
}

// Close releases the session and tensors.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return nil
	}
	var closeErr error
	if err := e.session.Destroy(); err != nil {
		closeErr = err
	}
	if err := e.output.Destroy(); err != nil {
		closeErr = err
	}
	for _, t := range e.inputs {
		if err := t.Destroy(); err != nil {
			closeErr = err
		}
	}
	e.inited = false
	return closeErr
}

// MeanPool averages the token embeddings in hiddenStates (seq x hidden,
// row-major) over positions whose mask is set.
func MeanPool(hiddenStates []float32, mask []int64, hidden int) []float32 {
	out := make([]float32, hidden)
	var count float32
	for pos, m := range mask {
		if m == 0 {
			continue
		}
		row := hiddenStates[pos*hidden : (pos+1)*hidden]
		for j, x := range row {
			out[j] += x
		}
		count++
	}
	if count > 0 {
		for j := range out {
			out[j] /= count
		}
	}
	return out
}
