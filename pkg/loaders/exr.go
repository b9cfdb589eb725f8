package loaders

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/x448/float16"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// OpenEXR single-part scanline images.
//
// Reading supports HALF, FLOAT and UINT channels with NONE, ZIPS and ZIP
// compression; R, G and B channels are required (a lone Y channel is read
// as gray). Writing produces R, G, B channels in FLOAT or HALF.

const (
	exrMagic   = 20000630
	exrVersion = 2

	exrFlagTiled     = 0x200
	exrFlagDeep      = 0x800
	exrFlagMultipart = 0x1000
)

// EXRCompression is the OpenEXR compression method
type EXRCompression uint8

const (
	EXRCompressionNone EXRCompression = 0
	EXRCompressionRLE  EXRCompression = 1
	EXRCompressionZIPS EXRCompression = 2
	EXRCompressionZIP  EXRCompression = 3
)

// linesPerBlock returns how many scanlines one chunk holds
func (c EXRCompression) linesPerBlock() int {
	if c == EXRCompressionZIP {
		return 16
	}
	return 1
}

func (c EXRCompression) String() string {
	switch c {
	case EXRCompressionNone:
		return "none"
	case EXRCompressionRLE:
		return "rle"
	case EXRCompressionZIPS:
		return "zips"
	case EXRCompressionZIP:
		return "zip"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// EXR channel pixel types
const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// ErrUnsupportedEXR is returned for valid files using features this reader lacks
var ErrUnsupportedEXR = errors.New("unsupported OpenEXR feature")

// EXROptions controls EncodeEXR
type EXROptions struct {
	Compression EXRCompression
	Half        bool // Store 16-bit half floats instead of 32-bit floats
}

// DefaultEXROptions writes lossless 32-bit float with ZIP compression
var DefaultEXROptions = EXROptions{Compression: EXRCompressionZIP}

type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
}

func (c exrChannel) size() int {
	if c.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

type exrHeader struct {
	channels    []exrChannel
	compression EXRCompression
	xMin, yMin  int32
	xMax, yMax  int32
}

// EncodeEXR writes img as a scanline OpenEXR file with R, G and B channels
func EncodeEXR(w io.Writer, img *core.Image, opts EXROptions) error {
	if err := img.Validate(); err != nil {
		return err
	}
	switch opts.Compression {
	case EXRCompressionNone, EXRCompressionZIPS, EXRCompressionZIP:
	default:
		return fmt.Errorf("writing %s: %w", opts.Compression, ErrUnsupportedEXR)
	}

	pixelType := int32(exrPixelFloat)
	if opts.Half {
		pixelType = exrPixelHalf
	}
	// Channels are stored in alphabetical order
	channels := []exrChannel{
		{name: "B", pixelType: pixelType, xSampling: 1, ySampling: 1},
		{name: "G", pixelType: pixelType, xSampling: 1, ySampling: 1},
		{name: "R", pixelType: pixelType, xSampling: 1, ySampling: 1},
	}
	return writeEXR(w, img, channels, opts.Compression)
}

// writeEXR writes img with the given channel list, which must be sorted by name
func writeEXR(w io.Writer, img *core.Image, channels []exrChannel, compression EXRCompression) error {
	var header bytes.Buffer
	le := binary.LittleEndian
	header.Write(le.AppendUint32(nil, exrMagic))
	header.Write(le.AppendUint32(nil, exrVersion))

	var chlist bytes.Buffer
	for _, ch := range channels {
		chlist.WriteString(ch.name)
		chlist.WriteByte(0)
		chlist.Write(le.AppendUint32(nil, uint32(ch.pixelType)))
		chlist.Write([]byte{0, 0, 0, 0}) // pLinear + reserved
		chlist.Write(le.AppendUint32(nil, uint32(ch.xSampling)))
		chlist.Write(le.AppendUint32(nil, uint32(ch.ySampling)))
	}
	chlist.WriteByte(0)

	box := make([]byte, 0, 16)
	for _, v := range []int32{0, 0, int32(img.Width - 1), int32(img.Height - 1)} {
		box = le.AppendUint32(box, uint32(v))
	}

	writeAttribute(&header, "channels", "chlist", chlist.Bytes())
	writeAttribute(&header, "compression", "compression", []byte{byte(compression)})
	writeAttribute(&header, "dataWindow", "box2i", box)
	writeAttribute(&header, "displayWindow", "box2i", box)
	writeAttribute(&header, "lineOrder", "lineOrder", []byte{0})
	writeAttribute(&header, "pixelAspectRatio", "float", le.AppendUint32(nil, math.Float32bits(1)))
	writeAttribute(&header, "screenWindowCenter", "v2f", make([]byte, 8))
	writeAttribute(&header, "screenWindowWidth", "float", le.AppendUint32(nil, math.Float32bits(1)))
	header.WriteByte(0)

	lines := compression.linesPerBlock()
	chunkCount := (img.Height + lines - 1) / lines

	chunks := make([][]byte, chunkCount)
	for i := range chunks {
		y0 := i * lines
		y1 := min(y0+lines, img.Height)
		raw := packLines(img, channels, y0, y1)

		data := raw
		if compression != EXRCompressionNone {
			packed, err := zipCompress(raw)
			if err != nil {
				return err
			}
			// Incompressible blocks are stored raw
			if len(packed) < len(raw) {
				data = packed
			}
		}

		chunk := make([]byte, 0, 8+len(data))
		chunk = le.AppendUint32(chunk, uint32(int32(y0)))
		chunk = le.AppendUint32(chunk, uint32(len(data)))
		chunks[i] = append(chunk, data...)
	}

	offset := uint64(header.Len() + 8*chunkCount)
	table := make([]byte, 0, 8*chunkCount)
	for _, chunk := range chunks {
		table = le.AppendUint64(table, offset)
		offset += uint64(len(chunk))
	}

	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(table); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func writeAttribute(buf *bytes.Buffer, name, typ string, value []byte) {
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.WriteString(typ)
	buf.WriteByte(0)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(value))))
	buf.Write(value)
}

// packLines lays out scanlines y0..y1 channel by channel
func packLines(img *core.Image, channels []exrChannel, y0, y1 int) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 0, (y1-y0)*img.Width*len(channels)*4)
	for y := y0; y < y1; y++ {
		for _, ch := range channels {
			offset := channelOffset(ch.name)
			for x := 0; x < img.Width; x++ {
				v := img.Pix[(y*img.Width+x)*3+offset]
				if ch.pixelType == exrPixelHalf {
					buf = le.AppendUint16(buf, float16.Fromfloat32(v).Bits())
				} else {
					buf = le.AppendUint32(buf, math.Float32bits(v))
				}
			}
		}
	}
	return buf
}

func channelOffset(name string) int {
	switch name {
	case "R":
		return 0
	case "G":
		return 1
	default:
		return 2
	}
}

// DecodeEXR reads a scanline OpenEXR file
func DecodeEXR(r io.Reader) (*core.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading exr: %w", err)
	}
	rd := &exrReader{data: data}

	if rd.uint32() != exrMagic {
		return nil, errors.New("not an OpenEXR file")
	}
	version := rd.uint32()
	if version&0xff != exrVersion {
		return nil, fmt.Errorf("exr version %d: %w", version&0xff, ErrUnsupportedEXR)
	}
	if version&(exrFlagTiled|exrFlagDeep|exrFlagMultipart) != 0 {
		return nil, fmt.Errorf("tiled, deep or multi-part exr: %w", ErrUnsupportedEXR)
	}

	header, err := rd.header()
	if err != nil {
		return nil, err
	}
	switch header.compression {
	case EXRCompressionNone, EXRCompressionZIPS, EXRCompressionZIP:
	default:
		return nil, fmt.Errorf("exr %s compression: %w", header.compression, ErrUnsupportedEXR)
	}

	width := int(header.xMax-header.xMin) + 1
	height := int(header.yMax-header.yMin) + 1
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("exr data window: %w", core.ErrEmptyImage)
	}

	lineBytes := 0
	for _, ch := range header.channels {
		if ch.xSampling != 1 || ch.ySampling != 1 {
			return nil, fmt.Errorf("exr channel %q is subsampled: %w", ch.name, ErrUnsupportedEXR)
		}
		lineBytes += ch.size() * width
	}

	targets, err := channelTargets(header.channels)
	if err != nil {
		return nil, err
	}

	lines := header.compression.linesPerBlock()
	chunkCount := (height + lines - 1) / lines
	offsets := make([]uint64, chunkCount)
	for i := range offsets {
		offsets[i] = rd.uint64()
	}
	if rd.err != nil {
		return nil, rd.err
	}

	img := core.NewImage(width, height)
	for _, offset := range offsets {
		if offset+8 > uint64(len(data)) {
			return nil, errors.New("exr chunk offset out of range")
		}
		y := int(int32(binary.LittleEndian.Uint32(data[offset:]))) - int(header.yMin)
		size := uint64(binary.LittleEndian.Uint32(data[offset+4:]))
		if offset+8+size > uint64(len(data)) || y < 0 || y >= height {
			return nil, errors.New("exr chunk out of range")
		}
		block := data[offset+8 : offset+8+size]

		count := min(lines, height-y)
		expected := count * lineBytes
		if len(block) < expected {
			if header.compression == EXRCompressionNone {
				return nil, errors.New("exr chunk is truncated")
			}
			block, err = zipDecompress(block, expected)
			if err != nil {
				return nil, err
			}
		}

		unpackLines(img, header.channels, targets, block, y, count)
	}

	// A luminance-only image is expanded to gray
	if targets.lumaOnly {
		for i := 0; i < len(img.Pix); i += 3 {
			img.Pix[i+1] = img.Pix[i]
			img.Pix[i+2] = img.Pix[i]
		}
	}
	return img, nil
}

// channelMap tells unpackLines where each file channel lands in the image
type channelMap struct {
	offsets  []int // -1 for skipped channels
	lumaOnly bool
}

func channelTargets(channels []exrChannel) (channelMap, error) {
	m := channelMap{offsets: make([]int, len(channels))}
	found := map[string]bool{}
	for i, ch := range channels {
		m.offsets[i] = -1
		switch ch.name {
		case "R", "G", "B":
			m.offsets[i] = channelOffset(ch.name)
			found[ch.name] = true
		case "Y":
			found["Y"] = true
		}
	}
	if found["R"] && found["G"] && found["B"] {
		return m, nil
	}
	if found["Y"] {
		m.lumaOnly = true
		for i, ch := range channels {
			if ch.name == "Y" {
				m.offsets[i] = 0
			} else {
				m.offsets[i] = -1
			}
		}
		return m, nil
	}
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.name)
	}
	sort.Strings(names)
	return m, fmt.Errorf("exr has channels %v, need R, G and B: %w", names, ErrUnsupportedEXR)
}

func unpackLines(img *core.Image, channels []exrChannel, targets channelMap, block []byte, y0, count int) {
	le := binary.LittleEndian
	pos := 0
	for y := y0; y < y0+count; y++ {
		for ci, ch := range channels {
			target := targets.offsets[ci]
			for x := 0; x < img.Width; x++ {
				var v float32
				switch ch.pixelType {
				case exrPixelHalf:
					v = float16.Frombits(le.Uint16(block[pos:])).Float32()
				case exrPixelFloat:
					v = math.Float32frombits(le.Uint32(block[pos:]))
				default:
					v = float32(le.Uint32(block[pos:]))
				}
				pos += ch.size()
				if target >= 0 {
					img.Pix[(y*img.Width+x)*3+target] = v
				}
			}
		}
	}
}

// exrReader is a little-endian cursor that records the first error
type exrReader struct {
	data []byte
	pos  int
	err  error
}

func (r *exrReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (r *exrReader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *exrReader) uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *exrReader) cstring() string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.data[r.pos:], 0)
	if end < 0 {
		r.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(r.data[r.pos : r.pos+end])
	r.pos += end + 1
	return s
}

func (r *exrReader) bytes(n int) []byte {
	if n < 0 || !r.need(n) {
		if r.err == nil {
			r.err = errors.New("negative exr attribute size")
		}
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *exrReader) header() (exrHeader, error) {
	var h exrHeader
	haveChannels, haveWindow := false, false
	le := binary.LittleEndian

	for {
		name := r.cstring()
		if r.err != nil {
			return h, fmt.Errorf("reading exr header: %w", r.err)
		}
		if name == "" {
			break
		}
		typ := r.cstring()
		size := int(int32(r.uint32()))
		value := r.bytes(size)
		if r.err != nil {
			return h, fmt.Errorf("reading exr attribute %q: %w", name, r.err)
		}

		switch {
		case name == "channels" && typ == "chlist":
			channels, err := parseChannels(value)
			if err != nil {
				return h, err
			}
			h.channels = channels
			haveChannels = true
		case name == "compression" && len(value) == 1:
			h.compression = EXRCompression(value[0])
		case name == "dataWindow" && len(value) == 16:
			h.xMin = int32(le.Uint32(value[0:]))
			h.yMin = int32(le.Uint32(value[4:]))
			h.xMax = int32(le.Uint32(value[8:]))
			h.yMax = int32(le.Uint32(value[12:]))
			haveWindow = true
		}
	}

	if !haveChannels || !haveWindow {
		return h, errors.New("exr header lacks channels or dataWindow")
	}
	return h, nil
}

func parseChannels(value []byte) ([]exrChannel, error) {
	r := &exrReader{data: value}
	var channels []exrChannel
	for {
		name := r.cstring()
		if r.err != nil {
			return nil, fmt.Errorf("reading exr channel list: %w", r.err)
		}
		if name == "" {
			break
		}
		ch := exrChannel{name: name}
		ch.pixelType = int32(r.uint32())
		r.bytes(4) // pLinear + reserved
		ch.xSampling = int32(r.uint32())
		ch.ySampling = int32(r.uint32())
		if r.err != nil {
			return nil, fmt.Errorf("reading exr channel %q: %w", name, r.err)
		}
		if ch.pixelType < exrPixelUint || ch.pixelType > exrPixelFloat {
			return nil, fmt.Errorf("exr channel %q has pixel type %d", name, ch.pixelType)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// zipCompress applies the OpenEXR byte split and delta predictor, then zlib
func zipCompress(raw []byte) ([]byte, error) {
	n := len(raw)
	tmp := make([]byte, n)

	// Even bytes first, then odd bytes
	half := (n + 1) / 2
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			tmp[i/2] = raw[i]
		} else {
			tmp[half+i/2] = raw[i]
		}
	}

	// Delta predictor
	prev := int(tmp[0])
	for i := 1; i < n; i++ {
		cur := int(tmp[i])
		tmp[i] = byte(cur - prev + 128 + 256)
		prev = cur
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(tmp); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipDecompress reverses zipCompress for a block of known raw size
func zipDecompress(packed []byte, rawSize int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, fmt.Errorf("exr zip block: %w", err)
	}
	defer zr.Close()

	tmp := make([]byte, rawSize)
	if _, err := io.ReadFull(zr, tmp); err != nil {
		return nil, fmt.Errorf("exr zip block: %w", err)
	}

	for i := 1; i < rawSize; i++ {
		tmp[i] = byte(int(tmp[i-1]) + int(tmp[i]) - 128)
	}

	raw := make([]byte, rawSize)
	half := (rawSize + 1) / 2
	for i := 0; i < rawSize; i++ {
		if i%2 == 0 {
			raw[i] = tmp[i/2]
		} else {
			raw[i] = tmp[half+i/2]
		}
	}
	return raw, nil
}
