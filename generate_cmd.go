package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eclo-audio/eclo/internal/history"
	"github.com/eclo-audio/eclo/pkg/tts"
)

var (
	genLanguage  string
	genSpeed     float64
	genEngine    string
	genRefAudio  string
	genRefText   string
	genInstruct  string
	genVoiceName string
	genOutputDir string
	genFormat    string

	generateCmd = &cobra.Command{
		Use:     "generate [TEXT]",
		Aliases: []string{"gen"},
		Short:   "Generate speech from text",
		Long: paragraph(
			fmt.Sprintf("\nGenerate speech from text with the active engine. Pass %s to clone a voice from a sample.", keyword("--ref-audio")),
		),
		Example: "  eclo generate \"Hello there\" --language en\n" +
			"  eclo generate \"안녕하세요\" -l ko --ref-audio voice.wav --ref-text \"...\"",
		Args: cobra.MaximumNArgs(1),
		RunE: runGenerate,
	}
)

func runGenerate(cmd *cobra.Command, args []string) error {
	text := ""
	if len(args) > 0 {
		text = args[0]
	}
	if text == "-" {
		b, err := readAllStdin()
		if err != nil {
			return err
		}
		text = strings.TrimSpace(b)
	}

	sett, err := openSettings()
	if err != nil {
		return err
	}

	engineID := genEngine
	if engineID == "" {
		engineID = sett.ActiveEngine()
	}
	if engineID == "" {
		engineID = tts.EngineCosyVoice3
	}

	outputDir := genOutputDir
	if outputDir == "" {
		outputDir = sett.OutputDir()
	}
	format := genFormat
	if format == "" {
		format = sett.OutputFormat()
	}

	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close() //nolint:errcheck

	cfg, err := engineConfig()
	if err != nil {
		return err
	}

	recorder := tts.RecorderFunc(func(ctx context.Context, rec tts.GenerationRecord) error {
		_, err := hist.Append(ctx, history.Entry{
			Text:       rec.Text,
			Language:   rec.Language,
			VoiceName:  rec.VoiceName,
			VoiceID:    rec.VoiceID,
			EngineID:   rec.EngineID,
			Duration:   rec.Duration,
			OutputPath: rec.OutputPath,
		})
		return err
	})

	orch, err := tts.NewOrchestrator(tts.NewRegistry(), recorder, cfg, log.Default())
	if err != nil {
		return err
	}

	req := tts.Request{
		Text:     text,
		Language: genLanguage,
		Speed:    genSpeed,
		RefAudio: genRefAudio,
		RefText:  genRefText,
		Instruct: genInstruct,
	}
	opts := tts.Options{
		EngineID:     engineID,
		OutputDir:    outputDir,
		OutputFormat: format,
		VoiceName:    genVoiceName,
		VoiceID:      genRefAudio,
		OnProgress: func(p tts.Progress) {
			log.Info("generating", "percent", p.Percent, "status", p.Message)
		},
	}

	result, err := orch.Generate(cmd.Context(), req, opts)
	if err != nil {
		var verr *tts.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s", verr.Reason)
		}
		return err
	}

	if result.Duration != nil {
		fmt.Printf("Wrote %s (%.1fs)\n", result.OutputPath, *result.Duration)
	} else {
		fmt.Println("Wrote", result.OutputPath)
	}
	return nil
}

func readAllStdin() (string, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("unable to read stdin: %w", err)
	}
	return string(b), nil
}

func init() {
	generateCmd.Flags().StringVarP(&genLanguage, "language", "l", "en", "language code")
	generateCmd.Flags().Float64VarP(&genSpeed, "speed", "s", 1.0, "speech speed (0.5-2.0)")
	generateCmd.Flags().StringVarP(&genEngine, "engine", "e", "", "engine id (defaults to the active engine)")
	generateCmd.Flags().StringVar(&genRefAudio, "ref-audio", "", "reference voice audio for cloning")
	generateCmd.Flags().StringVar(&genRefText, "ref-text", "", "transcript of the reference audio")
	generateCmd.Flags().StringVar(&genInstruct, "instruct", "", "style instruction text")
	generateCmd.Flags().StringVar(&genVoiceName, "voice-name", "", "display name recorded in history")
	generateCmd.Flags().StringVarP(&genOutputDir, "output-dir", "o", "", "output directory")
	generateCmd.Flags().StringVarP(&genFormat, "format", "f", "", "output format (wav, flac, ...)")
}
