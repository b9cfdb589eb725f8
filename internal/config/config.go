// Package config loads optional TOML bake settings. Values are applied in
// order: defaults, then the file, then explicitly set command line flags.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/df07/go-ibl-baker/pkg/core"
	"github.com/df07/go-ibl-baker/pkg/envmap"
	"github.com/df07/go-ibl-baker/pkg/loaders"
	"github.com/df07/go-ibl-baker/pkg/sh"
)

// Prefilter holds cubemap-baker settings
type Prefilter struct {
	FaceSize    int    `toml:"face_size"`
	SampleCount uint32 `toml:"samples"`
	Seam        string `toml:"seam"`
	Workers     int    `toml:"workers"` // 0 means one per CPU
	Preview     bool   `toml:"preview"`
	Compression string `toml:"compression"` // "zip" or "none"
	Half        bool   `toml:"half"`        // 16-bit half float channels
}

// SH holds sh-baker settings
type SH struct {
	Bands      int    `toml:"bands"`
	Normalize  string `toml:"normalize"`
	Irradiance bool   `toml:"irradiance"`
	Format     string `toml:"format"`
}

// Config is the root of a bake.toml file
type Config struct {
	Prefilter Prefilter `toml:"prefilter"`
	SH        SH        `toml:"sh"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Prefilter: Prefilter{
			FaceSize:    256,
			SampleCount: 1024,
			Seam:        envmap.SeamWrap.String(),
			Compression: "zip",
		},
		SH: SH{
			Bands:     3,
			Normalize: sh.NormalizeNone.String(),
			Format:    string(sh.FormatBinary),
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("config %s: %s", path, strict.String())
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks both sections
func (c Config) Validate() error {
	return errors.Join(c.Prefilter.Validate(), c.SH.Validate())
}

// Validate checks the cubemap-baker settings before any work starts
func (p Prefilter) Validate() error {
	var errs []error
	if !core.IsPowerOfTwo(p.FaceSize) {
		errs = append(errs, fmt.Errorf("prefilter.face_size %d: %w", p.FaceSize, core.ErrFaceSizeNotPowerOfTwo))
	}
	errs = append(errs, p.validateOutput())
	return errors.Join(errs...)
}

// ValidateConvert checks the settings a plain equirect to cubemap
// conversion uses. Any positive face size is accepted.
func (p Prefilter) ValidateConvert() error {
	var errs []error
	if p.FaceSize <= 0 {
		errs = append(errs, fmt.Errorf("prefilter.face_size %d: %w", p.FaceSize, core.ErrEmptyImage))
	}
	errs = append(errs, p.validateOutput())
	return errors.Join(errs...)
}

// validateOutput checks the settings shared by both commands
func (p Prefilter) validateOutput() error {
	var errs []error
	if _, err := envmap.ParseSeamMode(p.Seam); err != nil {
		errs = append(errs, fmt.Errorf("prefilter.seam: %w", err))
	}
	if p.Workers < 0 {
		errs = append(errs, fmt.Errorf("prefilter.workers must not be negative, got %d", p.Workers))
	}
	if _, err := p.EXROptions(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the sh-baker settings
func (s SH) Validate() error {
	var errs []error
	if s.Bands < 1 {
		errs = append(errs, fmt.Errorf("sh.bands %d: %w", s.Bands, core.ErrInvalidBands))
	}
	if _, err := sh.ParseNormalization(s.Normalize); err != nil {
		errs = append(errs, fmt.Errorf("sh.normalize: %w", err))
	}
	if _, err := sh.ParseFormat(s.Format); err != nil {
		errs = append(errs, fmt.Errorf("sh.format: %w", err))
	}
	return errors.Join(errs...)
}

// EXROptions maps the compression setting to EXR writer options
func (p Prefilter) EXROptions() (loaders.EXROptions, error) {
	switch p.Compression {
	case "zip", "":
		return loaders.EXROptions{Compression: loaders.EXRCompressionZIP, Half: p.Half}, nil
	case "none":
		return loaders.EXROptions{Compression: loaders.EXRCompressionNone, Half: p.Half}, nil
	}
	return loaders.EXROptions{}, fmt.Errorf("prefilter.compression %q: want zip or none", p.Compression)
}
