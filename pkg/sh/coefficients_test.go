package sh

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-ibl-baker/pkg/core"
)

func TestNormalize_Orthonormal(t *testing.T) {
	raw, err := Project(3, uniformFaces(8, core.NewVec3(1, 1, 1)))
	require.NoError(t, err)

	norm, err := raw.Normalize(NormalizeOrthonormal)
	require.NoError(t, err)
	assert.Equal(t, NormalizeOrthonormal, norm.Normalization)

	// (4π/3) * 1/(2√π)
	assert.InDelta(t, 2*math.Sqrt(math.Pi)/3, norm.Values[0].X, 1e-5)
	// The source set is left untouched
	assert.InDelta(t, 4*math.Pi/3, raw.Values[0].X, 1e-5)
	assert.Equal(t, NormalizeNone, raw.Normalization)

	_, err = norm.Normalize(NormalizeSquared)
	assert.ErrorIs(t, err, ErrAlreadyNormalized)
}

func TestNormalize_SquaredFactors(t *testing.T) {
	raw := NewCoefficients(3)
	for i := range raw.Values {
		raw.Values[i] = core.NewVec3(1, 1, 1)
	}

	sq, err := raw.Normalize(NormalizeSquared)
	require.NoError(t, err)
	for i, v := range sq.Values {
		l, m := BandOf(i)
		expected := K(l, m) * K(l, m)
		if m != 0 {
			expected *= 2
		}
		assert.InDelta(t, expected, v.X, 1e-6, "l=%d m=%d", l, m)
	}
}

func TestEvaluate_ReconstructsUniformField(t *testing.T) {
	raw, err := Project(3, uniformFaces(8, core.NewVec3(3, 3, 3)))
	require.NoError(t, err)
	orth, err := raw.Normalize(NormalizeOrthonormal)
	require.NoError(t, err)
	sq, err := raw.Normalize(NormalizeSquared)
	require.NoError(t, err)

	// The per-channel weight count leaves a factor of 1/3 in the projection
	for _, dir := range []core.Vec3{
		core.NewVec3(1, 0, 0),
		core.NewVec3(0, -1, 0),
		core.NewVec3(0.3, 0.3, -0.9).Normalize(),
	} {
		for _, c := range []*Coefficients{raw, orth, sq} {
			v := c.Evaluate(dir)
			assert.InDelta(t, 1, v.X, 1e-4, "%s dir %v", c.Normalization, dir)
			assert.InDelta(t, 1, v.Z, 1e-4, "%s dir %v", c.Normalization, dir)
		}
	}
}

func TestEvaluate_ReconstructsLinearField(t *testing.T) {
	// f = 1 + y lies entirely in bands 0 and 1, so it reconstructs exactly
	// up to quadrature error and the 1/3 channel factor
	raw, err := Project(2, facesFromFunc(32, func(d core.Vec3) core.Vec3 {
		v := 1 + d.Y
		return core.NewVec3(v, v, v)
	}))
	require.NoError(t, err)

	for _, dir := range []core.Vec3{
		core.NewVec3(0, 1, 0),
		core.NewVec3(0, -1, 0),
		core.NewVec3(1, 0.5, 0).Normalize(),
	} {
		v := raw.Evaluate(dir)
		assert.InDelta(t, (1+dir.Y)/3, v.Y, 5e-3, "dir %v", dir)
	}
}

func TestTruncatedCosine(t *testing.T) {
	assert.InDelta(t, math.Pi, TruncatedCosine(0), 1e-12)
	assert.InDelta(t, 2*math.Pi/3, TruncatedCosine(1), 1e-12)
	assert.InDelta(t, math.Pi/4, TruncatedCosine(2), 1e-12)
	assert.Equal(t, 0.0, TruncatedCosine(3))
	assert.InDelta(t, -math.Pi/24, TruncatedCosine(4), 1e-12)
	assert.Equal(t, 0.0, TruncatedCosine(5))
	assert.InDelta(t, math.Pi/64, TruncatedCosine(6), 1e-12)
}

func TestConvolveIrradiance(t *testing.T) {
	raw, err := Project(3, uniformFaces(4, core.NewVec3(1, 1, 1)))
	require.NoError(t, err)
	orth, err := raw.Normalize(NormalizeOrthonormal)
	require.NoError(t, err)

	irr, err := orth.ConvolveIrradiance()
	require.NoError(t, err)
	assert.True(t, irr.Irradiance)
	assert.False(t, orth.Irradiance)

	// A uniform radiance L gives irradiance πL (here scaled by the 1/3 factor)
	e := irr.Evaluate(core.NewVec3(0, 1, 0))
	assert.InDelta(t, math.Pi/3, e.X, 1e-4)

	_, err = irr.ConvolveIrradiance()
	assert.ErrorIs(t, err, ErrAlreadyConvolved)
}

func TestParseNormalization(t *testing.T) {
	for _, n := range []Normalization{NormalizeNone, NormalizeOrthonormal, NormalizeSquared} {
		parsed, err := ParseNormalization(n.String())
		require.NoError(t, err)
		assert.Equal(t, n, parsed)
	}
	_, err := ParseNormalization("unit")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Normalization(7).String())
}

func TestCoefficients_String(t *testing.T) {
	c := NewCoefficients(2)
	c.Values[Index(1, -1)] = core.NewVec3(1, 2, 3)
	s := c.String()
	assert.Contains(t, s, "bands=2")
	assert.Contains(t, s, "l=1 m=-1")
	assert.Contains(t, s, "l=1 m=+1")
}

func TestEncode_Binary(t *testing.T) {
	c := NewCoefficients(3)
	for i := range c.Values {
		c.Values[i] = core.NewVec3(float32(i), -float32(i)/2, 0.125)
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, c, FormatBinary))
	assert.Equal(t, 9*3*4, buf.Len())

	// First value is R of coefficient 0, second value is G of coefficient 0
	data := buf.Bytes()
	assert.Equal(t, []byte{0, 0, 0, 0}, data[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0x80}, data[4:8]) // -0.0

	back, err := Decode(bytes.NewReader(data), FormatBinary)
	require.NoError(t, err)
	assert.Equal(t, 3, back.Bands)
	assert.Equal(t, c.Values, back.Values)
}

func TestDecode_BinaryErrors(t *testing.T) {
	_, err := Decode(bytes.NewReader(make([]byte, 13)), FormatBinary)
	assert.Error(t, err)
	_, err = Decode(bytes.NewReader(make([]byte, 12*5)), FormatBinary)
	assert.Error(t, err)
	_, err = Decode(bytes.NewReader(nil), FormatBinary)
	assert.Error(t, err)
}

func TestEncode_Documents(t *testing.T) {
	c := NewCoefficients(2)
	c.Normalization = NormalizeOrthonormal
	c.Irradiance = true
	for i := range c.Values {
		c.Values[i] = core.NewVec3(float32(i)*0.1, 1.5, -2)
	}

	for _, format := range []Format{FormatYAML, FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, c, format))
			assert.Contains(t, buf.String(), "orthonormal")

			back, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, c.Bands, back.Bands)
			assert.Equal(t, c.Normalization, back.Normalization)
			assert.True(t, back.Irradiance)
			assert.Equal(t, c.Values, back.Values)
		})
	}
}

func TestEncode_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, NewCoefficients(1), FormatText))
	assert.Contains(t, buf.String(), "l=0 m=+0")

	_, err := Decode(&buf, FormatText)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"bin", "yaml", "toml", "text"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}
	_, err := ParseFormat("json")
	assert.Error(t, err)
}
