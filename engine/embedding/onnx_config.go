package embedding

// ONNXConfig configures the local ONNX Runtime provider. The model is
// expected to be a BERT-family encoder export taking input_ids and
// attention_mask and producing last_hidden_state.
type ONNXConfig struct {
	ModelPath   string
	VocabPath   string
	LibraryPath string // onnxruntime shared library; empty uses the default search path
	Dimensions  int
	MaxTokens   int // default 512
}
