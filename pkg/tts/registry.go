// Package tts implements the generation pipeline for the Eclo speech
// synthesizer: engine capability descriptors, the external engine process
// adapter, and the orchestrator that turns a request into an audio file.
package tts

import "fmt"

// Capabilities describes the optional generation features an engine supports.
// Clients gate their controls on these flags; the orchestrator uses them to
// validate requests before a process is spawned.
type Capabilities struct {
	VoiceCloning      bool `json:"voiceCloning"`
	PresetVoices      bool `json:"presetVoices"`
	SpeedControl      bool `json:"speedControl"`
	StyleInstruction  bool `json:"styleInstruction"`
	LanguageSelection bool `json:"languageSelection"`
	ReferenceText     bool `json:"referenceText"`
}

// RequiresVoice reports whether a generation on this engine needs a
// reference voice sample.
func (c Capabilities) RequiresVoice() bool {
	return c.VoiceCloning || c.PresetVoices
}

// Descriptor is the static metadata for a synthesis engine.
// Descriptors are pure data and immutable once defined.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Size        string `json:"size"`
	// Languages lists supported language codes. Empty means unrestricted.
	Languages    []string     `json:"languages"`
	Capabilities Capabilities `json:"capabilities"`
}

// SupportsLanguage reports whether the engine accepts the given language code.
func (d Descriptor) SupportsLanguage(code string) bool {
	if len(d.Languages) == 0 {
		return true
	}
	for _, l := range d.Languages {
		if l == code {
			return true
		}
	}
	return false
}

// Built-in engine identifiers.
const (
	EngineCosyVoice3 = "mlx-community/Fun-CosyVoice3-0.5B-2512-fp16"
	EngineOuteTTS    = "mlx-community/OuteTTS-0.2-500M-MLX"
	EngineKokoro     = "mlx-community/Kokoro-82M-MLX"
)

var builtinEngines = []Descriptor{
	{
		ID:          EngineCosyVoice3,
		Name:        "CosyVoice3 0.5B",
		Description: "Multilingual voice cloning with style instructions",
		Size:        "0.5B",
		Languages:   []string{"zh", "en", "ja", "ko", "de", "es", "fr", "it", "ru"},
		Capabilities: Capabilities{
			VoiceCloning:      true,
			SpeedControl:      true,
			StyleInstruction:  true,
			LanguageSelection: true,
			ReferenceText:     true,
		},
	},
	{
		ID:          EngineOuteTTS,
		Name:        "OuteTTS 0.2 500M",
		Description: "Voice cloning for East Asian and English speech",
		Size:        "500M",
		Languages:   []string{"en", "zh", "ja", "ko"},
		Capabilities: Capabilities{
			VoiceCloning:      true,
			SpeedControl:      true,
			LanguageSelection: true,
		},
	},
	{
		ID:          EngineKokoro,
		Name:        "Kokoro 82M",
		Description: "Lightweight preset-free synthesis",
		Size:        "82M",
		Languages:   []string{"en", "ja"},
		Capabilities: Capabilities{
			SpeedControl: true,
		},
	},
}

// Registry resolves engine identifiers to capability descriptors.
// It holds a fixed set of built-in engines; any other identifier is treated
// as a user-supplied custom engine with the full capability set.
type Registry struct {
	engines []Descriptor
}

// NewRegistry creates a registry populated with the built-in engines.
func NewRegistry() *Registry {
	return &Registry{engines: builtinEngines}
}

// List returns the built-in descriptors in stable order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.engines))
	copy(out, r.engines)
	return out
}

// Describe resolves an engine id to its descriptor. Unknown non-empty ids
// (local model paths, Hugging Face repos) resolve to a custom descriptor
// that advertises every capability and no language restriction, mirroring
// how the engine service itself falls back for arbitrary model ids.
func (r *Registry) Describe(id string) (Descriptor, error) {
	if id == "" {
		return Descriptor{}, fmt.Errorf("describe engine: %w", ErrEngineNotFound)
	}
	for _, d := range r.engines {
		if d.ID == id {
			return d, nil
		}
	}
	return customDescriptor(id), nil
}

// customDescriptor builds the passthrough descriptor for a user-supplied
// engine id. Languages stay unrestricted regardless of what the underlying
// model actually supports; the engine process is the authority there.
func customDescriptor(id string) Descriptor {
	return Descriptor{
		ID:          id,
		Name:        "Custom model",
		Description: "User-supplied model: " + id,
		Capabilities: Capabilities{
			VoiceCloning:      true,
			PresetVoices:      true,
			SpeedControl:      true,
			StyleInstruction:  true,
			LanguageSelection: true,
			ReferenceText:     true,
		},
	}
}
