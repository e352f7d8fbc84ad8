package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type fakeRunner struct {
	res *processResult
	err error
}

func (f *fakeRunner) Run(context.Context) (*processResult, error) {
	return f.res, f.err
}

// testOrchestrator builds an orchestrator whose adapter is replaced by a
// canned result and whose clock is pinned.
func testOrchestrator(t *testing.T, rec Recorder, res *processResult, runErr error) (*Orchestrator, *[]string, *int) {
	t.Helper()

	o, err := NewOrchestrator(NewRegistry(), rec, Config{Command: "eclo-engine", OutputFormat: "wav"}, log.Default())
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	var capturedArgs []string
	spawns := 0
	o.now = func() time.Time { return time.UnixMilli(1700000000000) }
	o.newAdapter = func(command string, args []string, onProgress func(Progress)) runner {
		spawns++
		capturedArgs = args
		return &fakeRunner{res: res, err: runErr}
	}
	return o, &capturedArgs, &spawns
}

func successStdout(path string, duration float64) *processResult {
	return &processResult{
		Stdout: fmt.Sprintf(`{"success":true,"output_path":%q,"duration":%v}`, path, duration),
	}
}

func TestGenerateEmptyTextFailsWithoutSpawn(t *testing.T) {
	o, _, spawns := testOrchestrator(t, nil, successStdout("/tmp/a.wav", 1), nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := o.Generate(context.Background(), Request{Text: text}, Options{EngineID: EngineKokoro})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected ValidationError for text %q, got %v", text, err)
		}
	}
	if *spawns != 0 {
		t.Errorf("Expected zero process invocations, got %d", *spawns)
	}
}

func TestGenerateVoiceRequirement(t *testing.T) {
	tests := []struct {
		name      string
		engineID  string
		refAudio  string
		wantError bool
	}{
		{"cloning engine without voice", EngineCosyVoice3, "", true},
		{"cloning engine with voice", EngineCosyVoice3, "/tmp/voice.wav", false},
		{"custom engine without voice", "/models/custom.bin", "", true},
		{"no-voice engine without voice", EngineKokoro, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, spawns := testOrchestrator(t, nil, successStdout("/tmp/a.wav", 1), nil)
			_, err := o.Generate(context.Background(),
				Request{Text: "hello", Language: "en", RefAudio: tt.refAudio},
				Options{EngineID: tt.engineID})

			var verr *ValidationError
			if tt.wantError {
				if !errors.As(err, &verr) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				if !strings.Contains(verr.Reason, "reference voice") {
					t.Errorf("Expected descriptive reason, got %q", verr.Reason)
				}
				if *spawns != 0 {
					t.Errorf("Expected no spawn on validation failure, got %d", *spawns)
				}
			} else {
				if err != nil {
					t.Fatalf("Expected success, got %v", err)
				}
				if *spawns != 1 {
					t.Errorf("Expected exactly one spawn, got %d", *spawns)
				}
			}
		})
	}
}

func TestGenerateArgumentContract(t *testing.T) {
	o, args, _ := testOrchestrator(t, nil, successStdout("/tmp/a.wav", 1), nil)

	_, err := o.Generate(context.Background(),
		Request{Text: "hi", Language: "en"},
		Options{EngineID: EngineKokoro, OutputDir: "/out"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	joined := strings.Join(*args, " ")
	for _, want := range []string{
		"--action generate",
		"--text hi",
		"--language en",
		"--model " + EngineKokoro,
		"--output /out/eclo_1700000000000.wav",
		"--speed 1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected args to contain %q, got %q", want, joined)
		}
	}
	// Unset optional fields must be omitted, not passed empty.
	for _, banned := range []string{"--ref-audio", "--ref-text", "--instruct"} {
		if strings.Contains(joined, banned) {
			t.Errorf("Expected %s to be omitted, got %q", banned, joined)
		}
	}
}

func TestGenerateOptionalArguments(t *testing.T) {
	o, args, _ := testOrchestrator(t, nil, successStdout("/tmp/a.wav", 1), nil)

	_, err := o.Generate(context.Background(),
		Request{
			Text:     "hi",
			Language: "ko",
			Speed:    1.5,
			RefAudio: "/tmp/voice.wav",
			RefText:  "sample transcript",
			Instruct: "whisper softly",
		},
		Options{EngineID: EngineCosyVoice3, OutputDir: "/out"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	joined := strings.Join(*args, " ")
	for _, want := range []string{
		"--speed 1.5",
		"--ref-audio /tmp/voice.wav",
		"--ref-text sample transcript",
		"--instruct whisper softly",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected args to contain %q, got %q", want, joined)
		}
	}
}

func TestGenerateRecordsHistoryOnSuccess(t *testing.T) {
	var recorded []GenerationRecord
	rec := RecorderFunc(func(_ context.Context, r GenerationRecord) error {
		recorded = append(recorded, r)
		return nil
	})

	o, _, _ := testOrchestrator(t, rec, successStdout("/tmp/a.wav", 3.2), nil)
	res, err := o.Generate(context.Background(),
		Request{Text: "hello world", Language: "en"},
		Options{EngineID: EngineKokoro, VoiceName: "Mock Voice", VoiceID: "v1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(recorded) != 1 {
		t.Fatalf("Expected 1 history record, got %d", len(recorded))
	}
	r := recorded[0]
	if r.OutputPath != res.OutputPath {
		t.Errorf("Expected record path %s, got %s", res.OutputPath, r.OutputPath)
	}
	if r.VoiceName != "Mock Voice" || r.VoiceID != "v1" || r.EngineID != EngineKokoro {
		t.Errorf("Unexpected record metadata: %+v", r)
	}
	if r.Duration != 3.2 {
		t.Errorf("Expected duration 3.2, got %v", r.Duration)
	}
}

func TestGenerateNoHistoryOnFailure(t *testing.T) {
	var recorded []GenerationRecord
	rec := RecorderFunc(func(_ context.Context, r GenerationRecord) error {
		recorded = append(recorded, r)
		return nil
	})

	o, _, _ := testOrchestrator(t, rec,
		&processResult{Stdout: `{"success":false,"error":"boom"}`}, nil)
	_, err := o.Generate(context.Background(),
		Request{Text: "hello", Language: "en"},
		Options{EngineID: EngineKokoro})
	if err == nil {
		t.Fatal("Expected failure")
	}
	if len(recorded) != 0 {
		t.Errorf("Expected no history records on failure, got %d", len(recorded))
	}
}

func TestGeneratePersistenceErrorDoesNotMaskSuccess(t *testing.T) {
	rec := RecorderFunc(func(context.Context, GenerationRecord) error {
		return errors.New("disk full")
	})

	o, _, _ := testOrchestrator(t, rec, successStdout("/tmp/a.wav", 1), nil)
	res, err := o.Generate(context.Background(),
		Request{Text: "hello", Language: "en"},
		Options{EngineID: EngineKokoro})
	if err != nil {
		t.Fatalf("Persistence failure must not fail the generation: %v", err)
	}
	if res.OutputPath != "/tmp/a.wav" {
		t.Errorf("Expected result despite persistence failure, got %+v", res)
	}
}

func TestGenerateTransportError(t *testing.T) {
	o, _, _ := testOrchestrator(t, nil, nil, &TransportError{Command: "eclo-engine", Err: errors.New("not found")})

	_, err := o.Generate(context.Background(),
		Request{Text: "hello", Language: "en"},
		Options{EngineID: EngineKokoro})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}

func TestResolveOutcome(t *testing.T) {
	duration := func(f float64) *float64 { return &f }

	tests := []struct {
		name        string
		proc        *processResult
		wantPath    string
		wantDur     *float64
		wantErr     bool
		wantKind    EngineFailureKind
		wantMessage string
	}{
		{
			name:     "structured success overrides exit code",
			proc:     &processResult{ExitCode: 2, Stdout: `{"success":true,"outputPath":"/tmp/a.wav","duration":3.2}`},
			wantPath: "/tmp/a.wav",
			wantDur:  duration(3.2),
		},
		{
			name:     "snake case output path",
			proc:     &processResult{Stdout: `{"success":true,"output_path":"/tmp/b.wav"}`},
			wantPath: "/tmp/b.wav",
		},
		{
			name:     "success without path falls back to computed",
			proc:     &processResult{Stdout: `{"success":true}`},
			wantPath: "/computed/eclo_1.wav",
		},
		{
			name:        "structured failure overrides exit zero",
			proc:        &processResult{ExitCode: 0, Stdout: `{"success":false,"error":"reference audio required"}`},
			wantErr:     true,
			wantKind:    FailureReported,
			wantMessage: "reference audio required",
		},
		{
			name:        "structured failure without error field",
			proc:        &processResult{Stdout: `{"success":false}`},
			wantErr:     true,
			wantKind:    FailureReported,
			wantMessage: "engine reported failure without details",
		},
		{
			name:     "empty stdout exit zero recovers",
			proc:     &processResult{ExitCode: 0, Stdout: ""},
			wantPath: "/computed/eclo_1.wav",
		},
		{
			name:     "garbage stdout exit zero recovers",
			proc:     &processResult{ExitCode: 0, Stdout: "Resampling audio to 22050 Hz"},
			wantPath: "/computed/eclo_1.wav",
		},
		{
			name:     "json without success flag treated as unparseable",
			proc:     &processResult{ExitCode: 0, Stdout: `{"note":"no flag here"}`},
			wantPath: "/computed/eclo_1.wav",
		},
		{
			name: "silent failure uses filtered diagnostics",
			proc: &processResult{
				ExitCode: 1,
				Diagnostics: diagnosticBuffer{lines: []string{
					"Fetching model...",
					"45%|████",
					"real error: disk full",
				}},
			},
			wantErr:     true,
			wantKind:    FailureSilent,
			wantMessage: "real error: disk full",
		},
		{
			name:        "silent failure without diagnostics gets generic message",
			proc:        &processResult{ExitCode: 7},
			wantErr:     true,
			wantKind:    FailureSilent,
			wantMessage: "engine exited with status 7",
		},
		{
			name:     "whitespace around json tolerated",
			proc:     &processResult{Stdout: "\n  {\"success\":true,\"output_path\":\"/tmp/c.wav\"}\n"},
			wantPath: "/tmp/c.wav",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := resolveOutcome(tt.proc, "/computed/eclo_1.wav")

			if tt.wantErr {
				var eerr *EngineError
				if !errors.As(err, &eerr) {
					t.Fatalf("Expected EngineError, got %v", err)
				}
				if eerr.Kind != tt.wantKind {
					t.Errorf("Expected kind %d, got %d", tt.wantKind, eerr.Kind)
				}
				if eerr.Message != tt.wantMessage {
					t.Errorf("Expected message %q, got %q", tt.wantMessage, eerr.Message)
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if res.OutputPath != tt.wantPath {
				t.Errorf("Expected path %s, got %s", tt.wantPath, res.OutputPath)
			}
			switch {
			case tt.wantDur == nil && res.Duration != nil:
				t.Errorf("Expected no duration, got %v", *res.Duration)
			case tt.wantDur != nil && res.Duration == nil:
				t.Errorf("Expected duration %v, got none", *tt.wantDur)
			case tt.wantDur != nil && *res.Duration != *tt.wantDur:
				t.Errorf("Expected duration %v, got %v", *tt.wantDur, *res.Duration)
			}
		})
	}
}

func TestGenerateOutputPathFormat(t *testing.T) {
	o, args, _ := testOrchestrator(t, nil, &processResult{ExitCode: 0}, nil)

	res, err := o.Generate(context.Background(),
		Request{Text: "hi", Language: "en"},
		Options{EngineID: EngineKokoro, OutputDir: "/music", OutputFormat: "flac"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := "/music/eclo_1700000000000.flac"
	if res.OutputPath != want {
		t.Errorf("Expected output path %s, got %s", want, res.OutputPath)
	}
	if !strings.Contains(strings.Join(*args, " "), want) {
		t.Errorf("Expected computed path in args, got %v", *args)
	}
	if res.Duration != nil {
		t.Errorf("Expected no duration on best-effort recovery, got %v", *res.Duration)
	}
}
