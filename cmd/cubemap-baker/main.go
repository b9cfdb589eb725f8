// Command cubemap-baker turns an equirectangular environment map into
// cubemap faces: either a GGX-prefiltered mip chain for specular image based
// lighting, or a plain unfiltered cubemap.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/df07/go-ibl-baker/internal/config"
	"github.com/df07/go-ibl-baker/pkg/envmap"
	"github.com/df07/go-ibl-baker/pkg/loaders"
	"github.com/df07/go-ibl-baker/pkg/prefilter"
)

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		newLogger(os.Stderr, false).Error("cubemap-baker failed", "error", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	verbose    bool
	configPath string
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var global globalFlags

	root := &cobra.Command{
		Use:           "cubemap-baker",
		Short:         "Bake equirectangular environment maps into cubemaps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&global.configPath, "config", "", "TOML file with bake settings")

	root.AddCommand(newPrefilterCmd(&global, stderr), newConvertCmd(&global, stderr))
	return root
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// addPrefilterFlags registers the flags that map onto config.Prefilter
func addPrefilterFlags(flags *pflag.FlagSet, withSamples bool) {
	def := config.Default().Prefilter
	flags.Int("face-size", def.FaceSize, "Edge length of the largest cubemap face (power of two for prefilter)")
	flags.String("seam", def.Seam, "Equirectangular seam handling: wrap or clamp")
	flags.Bool("preview", def.Preview, "Also write tonemapped PNG previews")
	flags.String("compression", def.Compression, "EXR compression: zip or none")
	flags.Bool("half", def.Half, "Write 16-bit half float EXR channels")
	flags.Int("workers", def.Workers, "Worker goroutines (0 = one per CPU)")
	if withSamples {
		flags.Uint32("samples", def.SampleCount, "GGX importance samples per texel")
	}
}

// prefilterSettings resolves defaults, then the config file, then any flag
// the user set explicitly
func prefilterSettings(flags *pflag.FlagSet, global *globalFlags) (config.Prefilter, error) {
	cfg := config.Default()
	if global.configPath != "" {
		var err error
		if cfg, err = config.Load(global.configPath); err != nil {
			return config.Prefilter{}, err
		}
	}
	p := cfg.Prefilter

	var err error
	if flags.Changed("face-size") {
		p.FaceSize, err = flags.GetInt("face-size")
	}
	if err == nil && flags.Changed("preview") {
		p.Preview, err = flags.GetBool("preview")
	}
	if err == nil && flags.Changed("compression") {
		p.Compression, err = flags.GetString("compression")
	}
	if err == nil && flags.Changed("half") {
		p.Half, err = flags.GetBool("half")
	}
	if err == nil && flags.Changed("workers") {
		p.Workers, err = flags.GetInt("workers")
	}
	if err == nil && flags.Lookup("samples") != nil && flags.Changed("samples") {
		p.SampleCount, err = flags.GetUint32("samples")
	}
	if err == nil && flags.Changed("seam") {
		p.Seam, err = flags.GetString("seam")
	}
	if err != nil {
		return config.Prefilter{}, err
	}
	return p, nil
}

// loadEnvironment opens the equirectangular input
func loadEnvironment(path, seam string) (*envmap.EquirectSampler, error) {
	mode, err := envmap.ParseSeamMode(seam)
	if err != nil {
		return nil, err
	}
	img, err := loaders.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return envmap.NewEquirectSampler(img, mode)
}

func saveOptions(p config.Prefilter) (loaders.SaveOptions, error) {
	exr, err := p.EXROptions()
	if err != nil {
		return loaders.SaveOptions{}, err
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return loaders.SaveOptions{EXR: exr, Preview: p.Preview, Concurrency: workers}, nil
}

func newPrefilterCmd(global *globalFlags, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefilter INPUT OUTPUT_DIR",
		Short: "Bake a GGX-prefiltered cubemap mip chain",
		Long: `Bake a GGX-prefiltered cubemap mip chain from an equirectangular map.

Every level is written as OUTPUT_DIR/{mip}mip{face}.exr, with faces named
+x, -x, +y, -y, +z and -z. Level i is filtered with roughness
i/(levels+1).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := prefilterSettings(cmd.Flags(), global)
			if err != nil {
				return err
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			logger := newLogger(stderr, global.verbose)
			return runPrefilter(logger, args[0], args[1], settings)
		},
	}
	addPrefilterFlags(cmd.Flags(), true)
	return cmd
}

func runPrefilter(logger *slog.Logger, input, outputDir string, settings config.Prefilter) error {
	start := time.Now()

	env, err := loadEnvironment(input, settings.Seam)
	if err != nil {
		return err
	}
	logger.Info("Loaded environment", "path", input,
		"width", env.Image().Width, "height", env.Image().Height)

	opts, err := saveOptions(settings)
	if err != nil {
		return err
	}

	chain, err := prefilter.Bake(env, settings.FaceSize, settings.SampleCount,
		prefilter.WithWorkers(settings.Workers),
		prefilter.WithProgress(func(ls prefilter.LevelStats) {
			logger.Info("Baked mip level",
				"level", fmt.Sprintf("%d/%d", ls.Level+1, ls.TotalLevels),
				"size", ls.FaceSize,
				"roughness", ls.Roughness,
				"duration", ls.Duration.Round(time.Millisecond))
			logger.Debug("Mip level samples", "level", ls.Level, "texels", ls.Texels, "samples", ls.Samples)
		}))
	if err != nil {
		return err
	}

	paths, err := loaders.SaveMipChain(outputDir, chain.FaceSets(), opts)
	if err != nil {
		return err
	}
	for _, path := range paths {
		logger.Debug("Wrote face", "path", path)
	}

	logger.Info("Prefilter complete",
		"levels", chain.Len(),
		"files", len(paths),
		"samples", chain.Stats.Samples,
		"bake", chain.Stats.Duration.Round(time.Millisecond),
		"total", time.Since(start).Round(time.Millisecond))
	return nil
}

func newConvertCmd(global *globalFlags, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT_DIR",
		Short: "Resample an equirectangular map onto six cubemap faces",
		Long: `Resample an equirectangular map onto six unfiltered cubemap faces,
written as OUTPUT_DIR/{face}.exr.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := prefilterSettings(cmd.Flags(), global)
			if err != nil {
				return err
			}
			if err := settings.ValidateConvert(); err != nil {
				return err
			}
			logger := newLogger(stderr, global.verbose)
			return runConvert(logger, args[0], args[1], settings)
		},
	}
	addPrefilterFlags(cmd.Flags(), false)
	return cmd
}

func runConvert(logger *slog.Logger, input, outputDir string, settings config.Prefilter) error {
	start := time.Now()

	env, err := loadEnvironment(input, settings.Seam)
	if err != nil {
		return err
	}
	opts, err := saveOptions(settings)
	if err != nil {
		return err
	}

	faces, err := prefilter.EquirectToCubemap(env, settings.FaceSize, prefilter.WithWorkers(settings.Workers))
	if err != nil {
		return err
	}
	paths, err := loaders.SaveFaceSet(outputDir, faces, opts)
	if err != nil {
		return err
	}

	logger.Info("Convert complete", "size", settings.FaceSize, "files", len(paths),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}
