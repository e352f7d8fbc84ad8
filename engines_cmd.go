package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/eclo-audio/eclo/internal/settings"
	"github.com/eclo-audio/eclo/pkg/tts"
)

var (
	enginesJSON bool

	enginesCmd = &cobra.Command{
		Use:   "engines",
		Short: "List the available synthesis engines",
		Args:  cobra.NoArgs,
		RunE:  runEngines,
	}

	enginesLanguagesCmd = &cobra.Command{
		Use:   "languages [ENGINE]",
		Short: "List the languages an engine supports",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEngineLanguages,
	}

	enginesUseCmd = &cobra.Command{
		Use:     "use ENGINE",
		Short:   "Set the active synthesis engine",
		Example: "  eclo engines use mlx-community/Kokoro-82M-MLX",
		Args:    cobra.ExactArgs(1),
		RunE:    runEngineUse,
	}

	engineNameStyle = lipgloss.NewStyle().Bold(true)
	engineDimStyle  = lipgloss.NewStyle().Faint(true)
)

func runEngines(*cobra.Command, []string) error {
	registry := tts.NewRegistry()
	descriptors := registry.List()

	if enginesJSON {
		out, err := json.MarshalIndent(descriptors, "", "  ")
		if err != nil {
			return fmt.Errorf("unable to encode engines: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	sett, err := openSettings()
	if err != nil {
		return err
	}
	active := sett.ActiveEngine()

	for _, d := range descriptors {
		marker := "  "
		if d.ID == active {
			marker = keyword("* ")
		}
		fmt.Printf("%s%s %s\n", marker, engineNameStyle.Render(d.Name), engineDimStyle.Render("("+d.ID+")"))
		fmt.Printf("    %s\n", d.Description)
		fmt.Printf("    languages: %s\n", strings.Join(d.Languages, ", "))
		if caps := capabilitySummary(d.Capabilities); caps != "" {
			fmt.Printf("    supports: %s\n", caps)
		}
	}
	return nil
}

func runEngineLanguages(cmd *cobra.Command, args []string) error {
	engineID := ""
	if len(args) > 0 {
		engineID = args[0]
	}
	if engineID == "" {
		sett, err := openSettings()
		if err != nil {
			return err
		}
		engineID = sett.ActiveEngine()
	}
	if engineID == "" {
		engineID = tts.EngineCosyVoice3
	}

	desc, err := tts.NewRegistry().Describe(engineID)
	if err != nil {
		return err
	}
	if len(desc.Languages) == 0 {
		fmt.Println("unrestricted")
		return nil
	}
	fmt.Println(strings.Join(desc.Languages, " "))
	return nil
}

func runEngineUse(cmd *cobra.Command, args []string) error {
	desc, err := tts.NewRegistry().Describe(args[0])
	if err != nil {
		return err
	}

	sett, err := openSettings()
	if err != nil {
		return err
	}
	if err := sett.SetString(settings.KeyEngine, desc.ID); err != nil {
		return err
	}

	fmt.Printf("Active engine set to %s %s\n", engineNameStyle.Render(desc.Name), engineDimStyle.Render("("+desc.ID+")"))
	return nil
}

func capabilitySummary(c tts.Capabilities) string {
	var parts []string
	if c.VoiceCloning {
		parts = append(parts, "voice cloning")
	}
	if c.PresetVoices {
		parts = append(parts, "preset voices")
	}
	if c.SpeedControl {
		parts = append(parts, "speed control")
	}
	if c.StyleInstruction {
		parts = append(parts, "style instructions")
	}
	if c.ReferenceText {
		parts = append(parts, "reference text")
	}
	return strings.Join(parts, ", ")
}

func init() {
	enginesCmd.Flags().BoolVar(&enginesJSON, "json", false, "print engine descriptors as JSON")
	enginesCmd.AddCommand(enginesLanguagesCmd)
	enginesCmd.AddCommand(enginesUseCmd)
}
