package testutil

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

// PNGChunk is an ancillary chunk inserted into a generated PNG.
type PNGChunk struct {
	Kind string
	Data []byte
}

// TextChunk builds an uncompressed tEXt chunk.
func TextChunk(keyword, text string) PNGChunk {
	return PNGChunk{Kind: "tEXt", Data: []byte(keyword + "\x00" + text)}
}

// ZTextChunk builds a zlib-compressed zTXt chunk.
func ZTextChunk(keyword, text string) PNGChunk {
	data := append([]byte(keyword), 0, 0)
	return PNGChunk{Kind: "zTXt", Data: append(data, deflate([]byte(text))...)}
}

// ITextChunk builds an international text chunk, optionally compressed.
func ITextChunk(keyword, text string, compressed bool) PNGChunk {
	var buf bytes.Buffer
	buf.WriteString(keyword)
	buf.WriteByte(0)
	if compressed {
		buf.Write([]byte{1, 0})
	} else {
		buf.Write([]byte{0, 0})
	}
	buf.WriteString("en\x00\x00") // language tag, empty translated keyword
	if compressed {
		buf.Write(deflate([]byte(text)))
	} else {
		buf.WriteString(text)
	}
	return PNGChunk{Kind: "iTXt", Data: buf.Bytes()}
}

// ExifChunk wraps a raw EXIF (TIFF) block in an eXIf chunk.
func ExifChunk(block []byte) PNGChunk {
	return PNGChunk{Kind: "eXIf", Data: block}
}

func deflate(b []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(b)
	zw.Close()
	return buf.Bytes()
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	return img
}

// EncodePNG returns a valid w x h PNG carrying the given chunks right after
// its header.
func EncodePNG(t *testing.T, w, h int, chunks ...PNGChunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	raw := buf.Bytes()

	// Signature (8) + IHDR chunk (4 + 4 + 13 + 4).
	const afterIHDR = 33
	out := append([]byte{}, raw[:afterIHDR]...)
	for _, c := range chunks {
		out = append(out, pngChunk(c.Kind, c.Data)...)
	}
	return append(out, raw[afterIHDR:]...)
}

func pngChunk(kind string, data []byte) []byte {
	out := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(out[:4], uint32(len(data)))
	copy(out[4:8], kind)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(out[4:])
	return binary.BigEndian.AppendUint32(out, crc)
}

// EncodeWebP returns a RIFF/WebP container holding a placeholder VP8L
// chunk and, when exif is not nil, an EXIF chunk. The image data itself
// is not decodable.
func EncodeWebP(exif []byte) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	writeRIFFChunk(&body, "VP8L", []byte{0x2f, 0, 0, 0, 0})
	if exif != nil {
		writeRIFFChunk(&body, "EXIF", exif)
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeRIFFChunk(buf *bytes.Buffer, id string, data []byte) {
	buf.WriteString(id)
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
}

// EncodeGIF returns a small GIF with a comment extension before the
// trailer.
func EncodeGIF(t *testing.T, comment string) []byte {
	t.Helper()
	pal := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatalf("Failed to encode gif: %v", err)
	}
	raw := buf.Bytes()
	trailer := len(raw) - 1

	out := append([]byte{}, raw[:trailer]...)
	out = append(out, 0x21, 0xFE)
	rest := []byte(comment)
	for len(rest) > 0 {
		n := min(len(rest), 255)
		out = append(out, byte(n))
		out = append(out, rest[:n]...)
		rest = rest[n:]
	}
	out = append(out, 0x00)
	return append(out, raw[trailer:]...)
}

// EncodeJPEG returns a small JPEG with an optional COM segment and an
// optional APP1 EXIF segment.
func EncodeJPEG(t *testing.T, comment string, exif []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(4, 4), nil); err != nil {
		t.Fatalf("Failed to encode jpeg: %v", err)
	}
	raw := buf.Bytes()

	out := append([]byte{}, raw[:2]...) // SOI
	if exif != nil {
		out = append(out, jpegSegment(0xE1, append([]byte("Exif\x00\x00"), exif...))...)
	}
	if comment != "" {
		out = append(out, jpegSegment(0xFE, []byte(comment))...)
	}
	return append(out, raw[2:]...)
}

func jpegSegment(marker byte, payload []byte) []byte {
	out := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(out[2:], uint16(len(payload)+2))
	return append(out, payload...)
}

// ExifWithUserComment builds a little-endian TIFF block whose Exif IFD holds
// a single UserComment tag with the given raw value.
func ExifWithUserComment(value []byte) []byte {
	le := binary.LittleEndian
	const (
		ifd0Offset    = 8
		exifIFDOffset = ifd0Offset + 18
		dataOffset    = exifIFDOffset + 18
	)
	buf := make([]byte, dataOffset)
	copy(buf, "II*\x00")
	le.PutUint32(buf[4:], ifd0Offset)

	// IFD0: one entry pointing at the Exif IFD.
	le.PutUint16(buf[ifd0Offset:], 1)
	entry := buf[ifd0Offset+2:]
	le.PutUint16(entry[0:], 0x8769) // ExifIFDPointer
	le.PutUint16(entry[2:], 4)      // LONG
	le.PutUint32(entry[4:], 1)
	le.PutUint32(entry[8:], exifIFDOffset)
	le.PutUint32(buf[ifd0Offset+14:], 0)

	// Exif IFD: UserComment, type UNDEFINED.
	le.PutUint16(buf[exifIFDOffset:], 1)
	entry = buf[exifIFDOffset+2:]
	le.PutUint16(entry[0:], 0x9286)
	le.PutUint16(entry[2:], 7)
	le.PutUint32(entry[4:], uint32(len(value)))
	if len(value) <= 4 {
		copy(entry[8:12], value)
	} else {
		le.PutUint32(entry[8:], dataOffset)
	}
	le.PutUint32(buf[exifIFDOffset+14:], 0)

	if len(value) > 4 {
		buf = append(buf, value...)
	}
	return buf
}

// UnicodeUserComment encodes s the way Stable Diffusion UIs write WebP
// metadata: the UNICODE prefix followed by UTF-16 big endian text.
func UnicodeUserComment(s string) []byte {
	out := []byte("UNICODE\x00")
	for _, u := range utf16.Encode([]rune(s)) {
		out = binary.BigEndian.AppendUint16(out, u)
	}
	return out
}

// ASCIIUserComment encodes s with the ASCII prefix.
func ASCIIUserComment(s string) []byte {
	return append([]byte("ASCII\x00\x00\x00"), s...)
}

// WriteFile writes data to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
	return path
}

// WriteGenerationPNG writes a 4x4 PNG whose "parameters" chunk holds raw.
func WriteGenerationPNG(t *testing.T, dir, rel, raw string) string {
	t.Helper()
	return WriteFile(t, dir, rel, EncodePNG(t, 4, 4, TextChunk("parameters", raw)))
}

// GenerationText builds a typical raw generation text.
func GenerationText(prompt, negative, params string) string {
	return prompt + "\nNegative prompt: " + negative + "\n" + params
}
