package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Request is one UI-level generation request. It is constructed per
// invocation and never persisted directly.
type Request struct {
	Text     string
	Language string
	// Speed is a playback-rate multiplier. Zero means the default of 1.0.
	Speed float64
	// RefAudio is the path of a reference voice sample for cloning.
	RefAudio string
	// RefText is the transcript of the reference sample.
	RefText string
	// Instruct is a free-form style instruction.
	Instruct string
}

// Options carries the per-generation context the surrounding application
// supplies alongside the request.
type Options struct {
	EngineID     string
	OutputDir    string
	OutputFormat string
	// VoiceName and VoiceID identify the selected voice for the history
	// record; they are display metadata, not engine inputs.
	VoiceName string
	VoiceID   string
	// OnProgress, when set, receives progress events as the engine emits
	// them, in order, before the call returns.
	OnProgress func(Progress)
}

// Result is the successful outcome of one generation.
type Result struct {
	OutputPath string
	// Duration is the audio length in seconds as reported by the engine,
	// nil when the engine did not report one.
	Duration *float64
}

// GenerationRecord is the summary handed to the history recorder after a
// successful generation.
type GenerationRecord struct {
	Text       string
	Language   string
	VoiceName  string
	VoiceID    string
	EngineID   string
	Duration   float64
	OutputPath string
}

// Recorder persists completed generations. Persistence failures never
// affect the generation outcome.
type Recorder interface {
	Record(ctx context.Context, rec GenerationRecord) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, rec GenerationRecord) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, rec GenerationRecord) error {
	return f(ctx, rec)
}

// Orchestrator validates generation requests against engine capabilities,
// spawns the engine process through a fresh adapter per request, resolves
// the terminal outcome, and records successful generations. Independent
// calls may run concurrently; each owns its own process and output path.
type Orchestrator struct {
	registry *Registry
	recorder Recorder
	cfg      Config
	logger   *log.Logger

	// Test seams.
	now        func() time.Time
	newAdapter func(command string, args []string, onProgress func(Progress)) runner
}

// NewOrchestrator creates an orchestrator that spawns the engine command
// from cfg. recorder may be nil, in which case successes are not persisted.
func NewOrchestrator(registry *Registry, recorder Recorder, cfg Config, logger *log.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		registry:   registry,
		recorder:   recorder,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		newAdapter: newProcessAdapter,
	}, nil
}

// Generate runs one generation to completion. It validates the request
// against the engine's capabilities before spawning anything, blocks until
// the engine process exits, and returns exactly one terminal outcome.
//
// Cancelling ctx kills the engine process and fails the call with
// ErrCancelled.
func (o *Orchestrator) Generate(ctx context.Context, req Request, opts Options) (*Result, error) {
	logger := o.logger.With("request", shortID(), "engine", opts.EngineID)

	desc, err := o.registry.Describe(opts.EngineID)
	if err != nil {
		return nil, err
	}

	if err := validateRequest(req, desc); err != nil {
		logger.Debug("request rejected before spawn", "error", err)
		return nil, err
	}

	format := opts.OutputFormat
	if format == "" {
		format = o.cfg.OutputFormat
	}
	if format == "" {
		format = "wav"
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = o.cfg.OutputDir
	}
	outputPath := filepath.Join(dir,
		fmt.Sprintf("eclo_%d.%s", o.now().UnixMilli(), format))

	args := append(append([]string{}, o.cfg.Args...), buildArgs(req, desc.ID, outputPath)...)
	logger.Debug("spawning engine process", "command", o.cfg.Command, "output", outputPath)

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	adapter := o.newAdapter(o.cfg.Command, args, opts.OnProgress)
	proc, err := adapter.Run(ctx)
	if err != nil {
		logger.Error("engine process did not complete", "error", err)
		return nil, err
	}

	result, err := resolveOutcome(proc, outputPath)
	if err != nil {
		logger.Warn("generation failed", "exitCode", proc.ExitCode, "error", err)
		return nil, err
	}
	logger.Info("generation complete", "output", result.OutputPath)

	o.record(ctx, req, opts, desc, result, logger)
	return result, nil
}

// record persists a successful generation. A persistence failure is logged
// and swallowed: it must not mask an otherwise-successful outcome.
func (o *Orchestrator) record(ctx context.Context, req Request, opts Options, desc Descriptor, res *Result, logger *log.Logger) {
	if o.recorder == nil {
		return
	}
	rec := GenerationRecord{
		Text:       req.Text,
		Language:   req.Language,
		VoiceName:  opts.VoiceName,
		VoiceID:    opts.VoiceID,
		EngineID:   desc.ID,
		OutputPath: res.OutputPath,
	}
	if res.Duration != nil {
		rec.Duration = *res.Duration
	}
	if err := o.recorder.Record(ctx, rec); err != nil {
		logger.Error("failed to record generation history", "error", err)
	}
}

// validateRequest enforces the preconditions that must hold before an
// engine process is spawned. Validation here is the single authority; the
// engine's own rejection of a missing voice reference is only a defensive
// fallback.
func validateRequest(req Request, desc Descriptor) error {
	if strings.TrimSpace(req.Text) == "" {
		return &ValidationError{Reason: "text is required"}
	}
	if desc.Capabilities.RequiresVoice() && req.RefAudio == "" {
		return &ValidationError{
			Reason: fmt.Sprintf("%s requires a reference voice audio; select a voice first", desc.Name),
		}
	}
	return nil
}

// buildArgs translates a validated request into the engine's command-line
// contract. Unset optional fields are omitted entirely, never passed empty.
func buildArgs(req Request, engineID, outputPath string) []string {
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	args := []string{
		"--action", "generate",
		"--text", req.Text,
		"--language", req.Language,
		"--model", engineID,
		"--output", outputPath,
		"--speed", strconv.FormatFloat(speed, 'f', -1, 64),
	}
	if req.RefAudio != "" {
		args = append(args, "--ref-audio", req.RefAudio)
	}
	if req.RefText != "" {
		args = append(args, "--ref-text", req.RefText)
	}
	if req.Instruct != "" {
		args = append(args, "--instruct", req.Instruct)
	}
	return args
}

// engineResult is the JSON object the engine writes to stdout just before
// exit. Success is a pointer so a JSON value without the flag is treated as
// unparseable rather than as a failure report. The engine service emits
// snake_case keys; camelCase is accepted for forward compatibility.
type engineResult struct {
	Success        *bool    `json:"success"`
	OutputPath     string   `json:"outputPath"`
	OutputPathSnek string   `json:"output_path"`
	Duration       *float64 `json:"duration"`
	Error          string   `json:"error"`
}

func (r engineResult) outputPath() string {
	if r.OutputPath != "" {
		return r.OutputPath
	}
	return r.OutputPathSnek
}

// resolveOutcome turns the process's terminal event into exactly one
// success or failure.
//
// The structured stdout result is trusted over the exit code: engines may
// exit non-zero for reasons unrelated to the generation, or exit zero while
// reporting a soft failure in the payload. Only when stdout carries no
// usable result does the exit code decide, with filtered stderr as the
// failure message of last resort.
func resolveOutcome(proc *processResult, computedPath string) (*Result, error) {
	trimmed := strings.TrimSpace(proc.Stdout)
	if trimmed != "" {
		var res engineResult
		if err := json.Unmarshal([]byte(trimmed), &res); err == nil && res.Success != nil {
			if *res.Success {
				path := res.outputPath()
				if path == "" {
					path = computedPath
				}
				return &Result{OutputPath: path, Duration: res.Duration}, nil
			}
			msg := res.Error
			if msg == "" {
				msg = "engine reported failure without details"
			}
			return nil, &EngineError{Kind: FailureReported, Message: msg}
		}
	}

	if proc.ExitCode == 0 {
		// The engine succeeded by exit code but emitted no structured
		// result; recover with the path the orchestrator computed.
		return &Result{OutputPath: computedPath}, nil
	}

	msg := proc.Diagnostics.failureMessage()
	if msg == "" {
		msg = fmt.Sprintf("engine exited with status %d", proc.ExitCode)
	}
	return nil, &EngineError{Kind: FailureSilent, Message: msg}
}

// shortID returns a compact correlation id for log lines.
func shortID() string {
	return uuid.NewString()[:8]
}
