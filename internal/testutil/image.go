package testutil

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
)

// HugePNG returns a small, well-formed PNG whose header declares a
// width x height, 16-bit RGBA image. A full decode would try to allocate
// the whole pixel buffer.
func HugePNG(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 16 // bit depth
	ihdr[9] = 6  // truecolor with alpha
	writePNGChunk(&buf, "IHDR", ihdr)

	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, _ = zw.Write([]byte{0})
	_ = zw.Close()
	writePNGChunk(&buf, "IDAT", idat.Bytes())

	writePNGChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writePNGChunk(buf *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	buf.WriteString(typ)
	buf.Write(data)

	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	buf.Write(n[:])
}
