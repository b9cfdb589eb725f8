package sh

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// Format selects how coefficients are serialized
type Format string

const (
	// FormatBinary is a flat little-endian float32 array of bands²×3 values
	FormatBinary Format = "bin"
	FormatYAML   Format = "yaml"
	FormatTOML   Format = "toml"
	// FormatText is the human-readable String() dump
	FormatText Format = "text"
)

// ParseFormat validates a format flag value
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatBinary, FormatYAML, FormatTOML, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("unknown SH output format %q (want bin, yaml, toml or text)", s)
}

// document is the yaml/toml layout of a coefficient set
type document struct {
	Bands         int          `yaml:"bands" toml:"bands"`
	Normalization string       `yaml:"normalization" toml:"normalization"`
	Irradiance    bool         `yaml:"irradiance" toml:"irradiance"`
	Coefficients  [][3]float32 `yaml:"coefficients" toml:"coefficients"`
}

// MarshalBinary encodes the coefficients as bands²×3 little-endian float32
// values with no header, RGB per coefficient in index order
func (c *Coefficients) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, len(c.Values)*12)
	for _, v := range c.Values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v.X))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v.Y))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v.Z))
	}
	return buf, nil
}

// UnmarshalBinary decodes the MarshalBinary layout, deriving the band count
// from the data length. Normalization state is not part of the binary layout.
func (c *Coefficients) UnmarshalBinary(data []byte) error {
	if len(data)%12 != 0 {
		return fmt.Errorf("SH data length %d is not a multiple of 12", len(data))
	}
	count := len(data) / 12
	bands := int(math.Sqrt(float64(count)))
	if bands*bands != count || bands == 0 {
		return fmt.Errorf("SH data holds %d coefficients, not a square number of bands", count)
	}

	c.Bands = bands
	c.Values = make([]core.Vec3, count)
	for i := range c.Values {
		o := i * 12
		c.Values[i] = core.Vec3{
			X: math.Float32frombits(binary.LittleEndian.Uint32(data[o:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(data[o+4:])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(data[o+8:])),
		}
	}
	return nil
}

// Encode writes the coefficients to w in the given format
func Encode(w io.Writer, c *Coefficients, format Format) error {
	switch format {
	case FormatBinary:
		data, err := c.MarshalBinary()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c.document()); err != nil {
			return fmt.Errorf("encoding SH yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(c.document()); err != nil {
			return fmt.Errorf("encoding SH toml: %w", err)
		}
		return nil
	case FormatText:
		_, err := io.WriteString(w, c.String())
		return err
	default:
		return fmt.Errorf("unknown SH output format %q", format)
	}
}

// Decode reads coefficients written by Encode. FormatText is write-only.
func Decode(r io.Reader, format Format) (*Coefficients, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc document
	switch format {
	case FormatBinary:
		c := &Coefficients{}
		if err := c.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return c, nil
	case FormatYAML:
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding SH yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding SH toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot decode SH format %q", format)
	}
	return doc.coefficients()
}

func (c *Coefficients) document() document {
	doc := document{
		Bands:         c.Bands,
		Normalization: c.Normalization.String(),
		Irradiance:    c.Irradiance,
		Coefficients:  make([][3]float32, len(c.Values)),
	}
	for i, v := range c.Values {
		doc.Coefficients[i] = v.Array()
	}
	return doc
}

func (doc document) coefficients() (*Coefficients, error) {
	if len(doc.Coefficients) != Count(doc.Bands) {
		return nil, fmt.Errorf("SH document declares %d bands but holds %d coefficients", doc.Bands, len(doc.Coefficients))
	}
	norm, err := ParseNormalization(doc.Normalization)
	if err != nil {
		return nil, err
	}
	c := NewCoefficients(doc.Bands)
	c.Normalization = norm
	c.Irradiance = doc.Irradiance
	for i, v := range doc.Coefficients {
		c.Values[i] = core.NewVec3(v[0], v[1], v[2])
	}
	return c, nil
}
