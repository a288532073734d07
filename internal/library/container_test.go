package library

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/sd-gallery/internal/testutil"
)

func TestReadImageInfo_PNGTruncatedAfterIDAT(t *testing.T) {
	data := testutil.EncodePNG(t, 8, 8, testutil.TextChunk("parameters", "kept"))
	// Drop the IEND chunk and part of the last IDAT CRC.
	cut := data[:len(data)-14]

	info, err := readImageInfo(bytes.NewReader(cut))
	require.NoError(t, err)
	assert.Equal(t, "png", info.format)
	assert.Equal(t, "kept", info.text["parameters"])
}

func TestReadImageInfo_PNGBrokenTextChunk(t *testing.T) {
	data := testutil.EncodePNG(t, 4, 4,
		testutil.PNGChunk{Kind: "zTXt", Data: []byte("parameters\x00\x00not zlib")},
		testutil.TextChunk("other", "fine"),
	)
	info, err := readImageInfo(bytes.NewReader(data))
	require.NoError(t, err)
	assert.NotContains(t, info.text, "parameters")
	assert.Equal(t, "fine", info.text["other"])
}

func TestReadImageInfo_GIFWithoutTrailer(t *testing.T) {
	data := testutil.EncodeGIF(t, "hello")
	info, err := readImageInfo(bytes.NewReader(data[:len(data)-1]))
	require.NoError(t, err)
	assert.True(t, info.hasComment)
	assert.Equal(t, "hello", string(info.comment))
}

func TestReadImageInfo_JPEGFillBytes(t *testing.T) {
	data := testutil.EncodeJPEG(t, "", nil)
	// SOI, fill bytes, then a COM segment.
	withFill := append([]byte{0xFF, 0xD8, 0xFF, 0xFF, 0xFF, 0xFE, 0x00, 0x04, 'h', 'i'}, data[2:]...)

	info, err := readImageInfo(bytes.NewReader(withFill))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(info.comment))
	assert.False(t, info.hasExif)
}

func TestDecodeUserComment(t *testing.T) {
	t.Run("Shift-JIS", func(t *testing.T) {
		// "日本" in Shift-JIS.
		data := append([]byte("JIS\x00\x00\x00\x00\x00"), 0x93, 0xFA, 0x96, 0x7B)
		s, err := decodeUserComment(data)
		require.NoError(t, err)
		assert.Equal(t, "日本", s)
	})

	t.Run("ASCII replaces high bytes", func(t *testing.T) {
		s, err := decodeUserComment(append([]byte("ASCII\x00\x00\x00"), 'a', 0xE9))
		require.NoError(t, err)
		assert.Equal(t, "a\uFFFD", s)
	})

	t.Run("UNICODE", func(t *testing.T) {
		s, err := decodeUserComment(testutil.UnicodeUserComment("héllo 🐈"))
		require.NoError(t, err)
		assert.Equal(t, "héllo 🐈", s)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := decodeUserComment([]byte("ASCII"))
		assert.Error(t, err)
	})

	t.Run("undefined", func(t *testing.T) {
		_, err := decodeUserComment(make([]byte, 12))
		assert.Error(t, err)
	})
}

func TestExifUserComment_ShortValueFallsBack(t *testing.T) {
	block := testutil.ExifWithUserComment([]byte("abc"))
	assert.Equal(t, "abc", exifUserComment(block))
}
