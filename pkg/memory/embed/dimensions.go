package embed

import "strings"

// defaultModels is what each provider embeds with when no model is named.
var defaultModels = map[string]string{
	"openai":    "text-embedding-3-small",
	"gemini":    "text-embedding-004",
	"ollama":    "nomic-embed-text",
	"fastembed": "fast-bge-small-en-v1.5",
}

var modelDimensions = map[string]map[string]int{
	"openai": {
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	},
	"gemini": {
		"text-embedding-004": 768,
		"embedding-001":      768,
	},
	"ollama": {
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
	},
	"fastembed": {
		"fast-bge-small-en-v1.5": 384,
		"fast-bge-small-en":      384,
		"fast-bge-base-en-v1.5":  768,
		"fast-bge-base-en":       768,
		"fast-all-MiniLM-L6-v2":  384,
		"fast-bge-small-zh-v1.5": 512,
	},
}

// CanonicalProvider folds provider aliases onto the names used by New.
func CanonicalProvider(provider string) string {
	switch p := strings.ToLower(strings.TrimSpace(provider)); p {
	case "google", "vertex", "vertexai":
		return "gemini"
	case "":
		return "dummy"
	default:
		return p
	}
}

// NativeDimension reports the vector size a provider's model produces. ok is
// false for models not listed here. The dummy embedder has no native size and
// reports DefaultDimension.
func NativeDimension(provider, model string) (dim int, ok bool) {
	provider = CanonicalProvider(provider)
	if provider == "dummy" {
		return DefaultDimension, true
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModels[provider]
	}
	dim, ok = modelDimensions[provider][model]
	return dim, ok
}

// ResizableDimension reports whether the model accepts a requested output
// dimension instead of always returning its native size.
func ResizableDimension(provider, model string) bool {
	switch CanonicalProvider(provider) {
	case "dummy":
		return true
	case "openai":
		if model = strings.TrimSpace(model); model == "" {
			model = defaultModels["openai"]
		}
		return strings.HasPrefix(model, "text-embedding-3")
	}
	return false
}
