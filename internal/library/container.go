// This file reads the metadata slots of image containers without decoding
// pixels: PNG text chunks, WebP RIFF chunks, GIF comment extensions and
// JPEG APP1/COM segments.

package library

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/riff"
	"golang.org/x/text/encoding/charmap"
)

const (
	// maxChunkSize bounds any single metadata chunk or segment we buffer.
	maxChunkSize = 64 << 20
	// maxInflatedText bounds decompressed zTXt/iTXt payloads.
	maxInflatedText = 16 << 20
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	webpFourCC   = riff.FourCC{'W', 'E', 'B', 'P'}
	exifFourCC   = riff.FourCC{'E', 'X', 'I', 'F'}
)

// imageInfo holds the raw metadata slots found in a container.
type imageInfo struct {
	format     string
	text       map[string]string // PNG text chunks by keyword
	exif       []byte
	hasExif    bool
	comment    []byte
	hasComment bool
}

func newImageInfo(format string) *imageInfo {
	return &imageInfo{format: format, text: map[string]string{}}
}

func (info *imageInfo) setExif(b []byte) {
	info.exif = b
	info.hasExif = true
}

func (info *imageInfo) appendComment(b []byte) {
	info.comment = append(info.comment, b...)
	info.hasComment = true
}

// readImageInfo sniffs the container format and collects its metadata.
func readImageInfo(r io.ReadSeeker) (*imageInfo, error) {
	head := make([]byte, 12)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	head = head[:n]
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	switch {
	case bytes.HasPrefix(head, pngSignature):
		return readPNGInfo(br)
	case len(head) == 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return readWebPInfo(br)
	case bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a")):
		return readGIFInfo(br)
	case bytes.HasPrefix(head, []byte{0xFF, 0xD8}):
		return readJPEGInfo(br)
	}
	return nil, fmt.Errorf("%w: unrecognized image format", ErrDecode)
}

func decodeErr(format string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
}

// readPNGInfo walks PNG chunks up to IEND. A file that is cut short after
// the first IDAT still yields the text chunks seen so far.
func readPNGInfo(r io.Reader) (*imageInfo, error) {
	info := newImageInfo("png")
	if _, err := io.CopyN(io.Discard, r, int64(len(pngSignature))); err != nil {
		return nil, decodeErr("png", err)
	}

	seenIDAT := false
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if seenIDAT {
				return info, nil
			}
			return nil, decodeErr("png", err)
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		kind := string(hdr[4:8])
		if length > maxChunkSize {
			return nil, decodeErr("png", fmt.Errorf("chunk %q too large (%d bytes)", kind, length))
		}

		switch kind {
		case "tEXt", "zTXt", "iTXt", "eXIf":
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				if seenIDAT {
					return info, nil
				}
				return nil, decodeErr("png", err)
			}
			// A single broken text chunk does not spoil the image.
			_ = info.addPNGChunk(kind, data)
		case "IEND":
			return info, nil
		default:
			if kind == "IDAT" {
				seenIDAT = true
			}
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				if seenIDAT {
					return info, nil
				}
				return nil, decodeErr("png", err)
			}
		}

		// CRC
		if _, err := io.CopyN(io.Discard, r, 4); err != nil {
			if seenIDAT {
				return info, nil
			}
			return nil, decodeErr("png", err)
		}
	}
}

func (info *imageInfo) addPNGChunk(kind string, data []byte) error {
	if kind == "eXIf" {
		info.setExif(data)
		return nil
	}

	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok {
		return errors.New("missing keyword separator")
	}
	key := latin1(keyword)

	switch kind {
	case "tEXt":
		info.text[key] = latin1(rest)
	case "zTXt":
		if len(rest) < 1 {
			return errors.New("truncated zTXt")
		}
		if rest[0] != 0 {
			return fmt.Errorf("unknown compression method %d", rest[0])
		}
		inflated, err := inflate(rest[1:])
		if err != nil {
			return err
		}
		info.text[key] = latin1(inflated)
	case "iTXt":
		if len(rest) < 2 {
			return errors.New("truncated iTXt")
		}
		compressed, method := rest[0], rest[1]
		rest = rest[2:]
		_, rest, ok = bytes.Cut(rest, []byte{0}) // language tag
		if !ok {
			return errors.New("truncated iTXt language tag")
		}
		_, rest, ok = bytes.Cut(rest, []byte{0}) // translated keyword
		if !ok {
			return errors.New("truncated iTXt translated keyword")
		}
		if compressed == 1 {
			if method != 0 {
				return fmt.Errorf("unknown compression method %d", method)
			}
			inflated, err := inflate(rest)
			if err != nil {
				return err
			}
			rest = inflated
		}
		info.text[key] = string(rest)
	}
	return nil
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflatedText))
}

func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// readWebPInfo walks the RIFF chunks of a WebP file looking for EXIF.
func readWebPInfo(r io.Reader) (*imageInfo, error) {
	info := newImageInfo("webp")
	formType, rr, err := riff.NewReader(r)
	if err != nil {
		return nil, decodeErr("webp", err)
	}
	if formType != webpFourCC {
		return nil, decodeErr("webp", fmt.Errorf("unexpected form type %q", formType[:]))
	}

	for {
		id, length, data, err := rr.Next()
		if err == io.EOF {
			return info, nil
		}
		if err != nil {
			return nil, decodeErr("webp", err)
		}
		if id != exifFourCC {
			continue
		}
		if length > maxChunkSize {
			return nil, decodeErr("webp", fmt.Errorf("EXIF chunk too large (%d bytes)", length))
		}
		b, err := io.ReadAll(data)
		if err != nil {
			return nil, decodeErr("webp", err)
		}
		info.setExif(b)
	}
}

// readGIFInfo collects comment extensions. Image data is skipped block by
// block without decoding.
func readGIFInfo(r *bufio.Reader) (*imageInfo, error) {
	info := newImageInfo("gif")

	// Header (6) + logical screen descriptor (7).
	var lsd [13]byte
	if _, err := io.ReadFull(r, lsd[:]); err != nil {
		return nil, decodeErr("gif", err)
	}
	if err := skipColorTable(r, lsd[10]); err != nil {
		return nil, decodeErr("gif", err)
	}

	seenImage := false
	for {
		introducer, err := r.ReadByte()
		if err != nil {
			if seenImage {
				return info, nil
			}
			return nil, decodeErr("gif", err)
		}

		switch introducer {
		case 0x21: // extension
			label, err := r.ReadByte()
			if err != nil {
				return nil, decodeErr("gif", err)
			}
			blocks, err := readSubBlocks(r, label == 0xFE)
			if err != nil {
				return nil, decodeErr("gif", err)
			}
			if label == 0xFE {
				info.appendComment(blocks)
			}
		case 0x2C: // image descriptor
			var desc [9]byte
			if _, err := io.ReadFull(r, desc[:]); err != nil {
				return nil, decodeErr("gif", err)
			}
			if err := skipColorTable(r, desc[8]); err != nil {
				return nil, decodeErr("gif", err)
			}
			if _, err := r.ReadByte(); err != nil { // LZW minimum code size
				return nil, decodeErr("gif", err)
			}
			if _, err := readSubBlocks(r, false); err != nil {
				return nil, decodeErr("gif", err)
			}
			seenImage = true
		case 0x3B: // trailer
			return info, nil
		default:
			return nil, decodeErr("gif", fmt.Errorf("unexpected block 0x%02x", introducer))
		}
	}
}

func skipColorTable(r io.Reader, packed byte) error {
	if packed&0x80 == 0 {
		return nil
	}
	size := 3 * (1 << ((packed & 0x07) + 1))
	_, err := io.CopyN(io.Discard, r, int64(size))
	return err
}

// readSubBlocks consumes a GIF sub-block chain, returning its payload when
// keep is set.
func readSubBlocks(r *bufio.Reader, keep bool) ([]byte, error) {
	var out []byte
	for {
		n, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		if !keep {
			if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
				return nil, err
			}
			continue
		}
		block := make([]byte, n)
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
}

// readJPEGInfo scans JPEG segments up to the start of scan.
func readJPEGInfo(r *bufio.Reader) (*imageInfo, error) {
	info := newImageInfo("jpeg")
	if _, err := io.CopyN(io.Discard, r, 2); err != nil {
		return nil, decodeErr("jpeg", err)
	}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, decodeErr("jpeg", err)
		}
		if b != 0xFF {
			return nil, decodeErr("jpeg", fmt.Errorf("expected marker, got 0x%02x", b))
		}
		marker, err := r.ReadByte()
		for err == nil && marker == 0xFF { // fill bytes
			marker, err = r.ReadByte()
		}
		if err != nil {
			return nil, decodeErr("jpeg", err)
		}

		switch {
		case marker == 0xD9 || marker == 0xDA: // EOI, SOS
			return info, nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			continue // no payload
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, decodeErr("jpeg", err)
		}
		length := int(binary.BigEndian.Uint16(lenBuf[:]))
		if length < 2 {
			return nil, decodeErr("jpeg", fmt.Errorf("bad segment length %d", length))
		}
		payload := make([]byte, length-2)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, decodeErr("jpeg", err)
		}

		switch marker {
		case 0xE1:
			if bytes.HasPrefix(payload, []byte("Exif\x00\x00")) && !info.hasExif {
				info.setExif(payload)
			}
		case 0xFE:
			info.appendComment(payload)
		}
	}
}
