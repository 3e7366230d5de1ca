// Command midi2nes compiles a Standard MIDI File into 6502 assembly and an
// iNES ROM for the NES APU. It drives the shared compile pipeline and then
// shells out to ca65/ld65 to assemble the result, matching the exit-code
// contract: 0 success, 1 compilation error, 2 toolchain error. Grounded on
// tools/forge/main.go's staged progress banners and its rebuildPlayer
// exec.Command/CombinedOutput pattern for invoking the external assembler.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"midi2nes/internal/archive"
	"midi2nes/internal/compile"
	"midi2nes/internal/config"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		var toolErr toolchainError
		if errors.As(err, &toolErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noPatterns bool
	var verbose bool
	var samplesDir string
	var style string

	cmd := &cobra.Command{
		Use:   "midi2nes <input.mid> [output.nes]",
		Short: "Compile a MIDI file into a playable NES ROM",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output := deriveOutputPath(args)

			cfg := config.Default()
			cfg.SkipPatterns = noPatterns
			cfg.Verbose = verbose
			cfg.ArpeggioStyle = config.ArpeggioStyle(style)

			return run(cfg, input, output, samplesDir)
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&noPatterns, "no-patterns", false, "disable pattern detection and compression")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print per-stage progress")
	cmd.Flags().StringVar(&samplesDir, "samples", "", "directory of DPCM sample files (.dmc), named by sample name")
	cmd.Flags().StringVar(&style, "style", string(config.StyleDefault), "arpeggio pattern for chords: default, heroic, or mysterious")

	return cmd
}

func deriveOutputPath(args []string) string {
	if len(args) == 2 {
		return args[1]
	}
	input := args[0]
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".nes"
}

func run(cfg config.CompileConfig, input, output, samplesDir string) error {
	ctx := config.NewContext(cfg)

	sampleIndex, err := compile.LoadSampleIndex(samplesDir)
	if err != nil {
		return fmt.Errorf("loading samples: %w", err)
	}

	result, err := compile.Run(ctx, input, sampleIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return err
	}
	if report := ctx.Diag.Report(); report != "" {
		fmt.Fprint(os.Stderr, report)
	}

	workDir, err := os.MkdirTemp("", "midi2nes-")
	if err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	asmPath := filepath.Join(workDir, "music.asm")
	cfgPath := filepath.Join(workDir, "nes.cfg")
	if err := os.WriteFile(asmPath, []byte(result.ASM), 0644); err != nil {
		return fmt.Errorf("writing assembly: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(result.LinkerScript), 0644); err != nil {
		return fmt.Errorf("writing linker script: %w", err)
	}

	if cfg.Verbose {
		fmt.Println("=== Assembling ===")
	}
	if err := assemble(workDir, asmPath, cfgPath, output); err != nil {
		fmt.Fprintf(os.Stderr, "TOOLCHAIN ERROR: %v\n", err)
		return toolchainError{err}
	}

	// ld65 leaves the HEADER area zero-filled; write the iNES header over it.
	romFile, err := os.OpenFile(output, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening rom for header: %w", err)
	}
	_, err = romFile.WriteAt(result.INESHeader[:], 0)
	if cerr := romFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing iNES header: %w", err)
	}

	famiPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".txt"
	if err := os.WriteFile(famiPath, []byte(result.FamiText), 0644); err != nil {
		return fmt.Errorf("writing famitracker export: %w", err)
	}

	archivePath := strings.TrimSuffix(output, filepath.Ext(output)) + ".patterns.gz"
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating pattern archive: %w", err)
	}
	defer archiveFile.Close()
	if err := archive.Write(archiveFile, result.Archive); err != nil {
		return fmt.Errorf("writing pattern archive: %w", err)
	}

	if cfg.Verbose {
		fmt.Printf("=== Done: %s ===\n", output)
	}
	return nil
}

// toolchainError distinguishes an assembler/linker failure from a
// compilation failure so main can map it to exit code 2.
type toolchainError struct{ err error }

func (e toolchainError) Error() string { return e.err.Error() }
func (e toolchainError) Unwrap() error { return e.err }

func assemble(workDir, asmPath, cfgPath, output string) error {
	objPath := filepath.Join(workDir, "music.o")

	asmCmd := exec.Command("ca65", "-o", objPath, asmPath)
	if out, err := asmCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ca65: %w\n%s", err, out)
	}

	linkCmd := exec.Command("ld65", "-C", cfgPath, "-o", output, objPath)
	if out, err := linkCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ld65: %w\n%s", err, out)
	}
	return nil
}
