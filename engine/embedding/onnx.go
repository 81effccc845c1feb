//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// initRuntime initialises the process-wide ONNX Runtime environment once.
func initRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNX runs a local encoder model. The embedding is the hidden state of
// the [CLS] token. Inference is serialised because the session reuses
// pre-allocated tensors.
type ONNX struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	tokenizer *WordPiece
	inputIDs  *ort.Tensor[int64]
	mask      *ort.Tensor[int64]
	output    *ort.Tensor[float32]
	dims      int
	maxTokens int
}

// NewONNX loads the model and vocabulary.
func NewONNX(cfg ONNXConfig) (Embedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding: onnx dimensions must be positive")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("embedding: init onnx runtime: %w", err)
	}
	tok, err := LoadWordPiece(cfg.VocabPath)
	if err != nil {
		return nil, err
	}

	seq := int64(cfg.MaxTokens)
	ids, mask := tok.Encode("", cfg.MaxTokens)
	e := &ONNX{tokenizer: tok, dims: cfg.Dimensions, maxTokens: cfg.MaxTokens}

	if e.inputIDs, err = ort.NewTensor(ort.NewShape(1, seq), ids); err != nil {
		return nil, fmt.Errorf("embedding: input_ids tensor: %w", err)
	}
	if e.mask, err = ort.NewTensor(ort.NewShape(1, seq), mask); err != nil {
		e.Close()
		return nil, fmt.Errorf("embedding: attention_mask tensor: %w", err)
	}
	out := make([]float32, cfg.MaxTokens*cfg.Dimensions)
	if e.output, err = ort.NewTensor(ort.NewShape(1, seq, int64(cfg.Dimensions)), out); err != nil {
		e.Close()
		return nil, fmt.Errorf("embedding: output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{e.inputIDs, e.mask},
		[]ort.ArbitraryTensor{e.output},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("embedding: create onnx session: %w", err)
	}
	return e, nil
}

// Embed implements Embedder.
func (e *ONNX) Embed(_ context.Context, text string) ([]float32, error) {
	ids, mask := e.tokenizer.Encode(text, e.maxTokens)

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputIDs.GetData(), ids)
	copy(e.mask.GetData(), mask)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx embed: inference: %w", err)
	}

	vec := make([]float32, e.dims)
	copy(vec, e.output.GetData()[:e.dims])
	return vec, nil
}

// Dimensions implements Embedder.
func (e *ONNX) Dimensions() int { return e.dims }

// Close destroys the session and tensors. The runtime environment stays
// up until process exit.
func (e *ONNX) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputIDs != nil {
		_ = e.inputIDs.Destroy()
	}
	if e.mask != nil {
		_ = e.mask.Destroy()
	}
	if e.output != nil {
		_ = e.output.Destroy()
	}
	e.inputIDs, e.mask, e.output = nil, nil, nil
	return err
}
