// Command sh-baker projects a cubemap onto spherical harmonics and writes
// the coefficients for diffuse image based lighting.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/df07/go-ibl-baker/internal/config"
	"github.com/df07/go-ibl-baker/pkg/loaders"
	"github.com/df07/go-ibl-baker/pkg/sh"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		newLogger(os.Stderr, false).Error("sh-baker failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type options struct {
	verbose    bool
	configPath string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	def := config.Default().SH

	cmd := &cobra.Command{
		Use:   "sh-baker FACE_+X FACE_-X FACE_+Y FACE_-Y FACE_+Z FACE_-Z [OUTPUT]",
		Short: "Project a cubemap onto spherical harmonics",
		Long: `Project six cubemap faces onto spherical harmonics.

The faces are given in +x, -x, +y, -y, +z, -z order and must be square and
of equal size. With OUTPUT the coefficients are written in --format
(default bin: bands*bands RGB float32 triples, little-endian). Without
OUTPUT they are printed to stdout as text unless --format is given.`,
		Args:          cobra.RangeArgs(6, 7),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := shSettings(cmd.Flags(), opts.configPath)
			if err != nil {
				return err
			}

			format := sh.Format(settings.Format)
			var output string
			if len(args) == 7 {
				output = args[6]
			} else if !cmd.Flags().Changed("format") {
				format = sh.FormatText
			}

			logger := newLogger(stderr, opts.verbose)
			return run(logger, args[:6], settings, format, output, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&opts.configPath, "config", "", "TOML file with bake settings")
	flags.Int("bands", def.Bands, "Number of SH bands (bands*bands coefficients)")
	flags.String("normalize", def.Normalize, "Normalization: none, orthonormal or squared")
	flags.Bool("irradiance", def.Irradiance, "Convolve with the clamped cosine lobe")
	flags.String("format", def.Format, "Output format: bin, yaml, toml or text")
	return cmd
}

// shSettings resolves defaults, then the config file, then explicit flags
func shSettings(flags *pflag.FlagSet, configPath string) (config.SH, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.SH{}, err
		}
	}
	s := cfg.SH

	var err error
	if flags.Changed("bands") {
		s.Bands, err = flags.GetInt("bands")
	}
	if err == nil && flags.Changed("normalize") {
		s.Normalize, err = flags.GetString("normalize")
	}
	if err == nil && flags.Changed("irradiance") {
		s.Irradiance, err = flags.GetBool("irradiance")
	}
	if err == nil && flags.Changed("format") {
		s.Format, err = flags.GetString("format")
	}
	if err != nil {
		return config.SH{}, err
	}

	if err := s.Validate(); err != nil {
		return config.SH{}, err
	}
	return s, nil
}

// bake loads the faces and produces the final coefficient set
func bake(logger *slog.Logger, paths []string, settings config.SH) (*sh.Coefficients, error) {
	faces, err := loaders.LoadFaceSet(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded cubemap", "size", faces.Size())

	start := time.Now()
	coeffs, err := sh.Project(settings.Bands, faces)
	if err != nil {
		return nil, err
	}
	logger.Debug("Projected", "bands", settings.Bands, "duration", time.Since(start))

	mode, err := sh.ParseNormalization(settings.Normalize)
	if err != nil {
		return nil, err
	}
	if mode != sh.NormalizeNone {
		if coeffs, err = coeffs.Normalize(mode); err != nil {
			return nil, err
		}
	}
	if settings.Irradiance {
		if coeffs, err = coeffs.ConvolveIrradiance(); err != nil {
			return nil, err
		}
	}
	return coeffs, nil
}

func run(logger *slog.Logger, paths []string, settings config.SH, format sh.Format, output string, stdout io.Writer) error {
	coeffs, err := bake(logger, paths, settings)
	if err != nil {
		return err
	}

	if output == "" {
		return sh.Encode(stdout, coeffs, format)
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := sh.Encode(w, coeffs, format); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	logger.Info("Wrote SH coefficients", "path", output, "bands", coeffs.Bands,
		"normalization", coeffs.Normalization, "irradiance", coeffs.Irradiance, "format", format)
	return nil
}
