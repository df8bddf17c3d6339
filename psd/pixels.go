package psd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/klauspost/compress/zlib"
)

// maxDeflateRatio bounds how far deflate can expand its input.
const maxDeflateRatio = 1032

// decodePlanes decodes n planes of w*h bytes. RLE data starts with the row
// byte counts for all planes, followed by the packed rows.
func decodePlanes(c Compression, data []byte, n, w, h int, wide bool) ([][]byte, error) {
	size := w * h
	planes := make([][]byte, n)

	switch c {
	case Raw:
		if len(data) < n*size {
			return nil, fmt.Errorf("%w: raw data has %d bytes, need %d", ErrTruncated, len(data), n*size)
		}

		for i := range planes {
			planes[i] = make([]byte, size)
			copy(planes[i], data[i*size:(i+1)*size])
		}
	case RLE:
		countSize := 2
		if wide {
			countSize = 4
		}

		rows := n * h
		if len(data) < rows*countSize {
			return nil, fmt.Errorf("%w: RLE row table", ErrTruncated)
		}

		counts := make([]int, rows)
		total := 0

		for row := range counts {
			if wide {
				counts[row] = int(binary.BigEndian.Uint32(data[row*4:]))
			} else {
				counts[row] = int(binary.BigEndian.Uint16(data[row*2:]))
			}

			// a two byte repeat run expands to at most 128 bytes
			if counts[row]*64 < w {
				return nil, fmt.Errorf("%w: RLE row %d of %d bytes cannot fill %d pixels", ErrCorrupt, row, counts[row], w)
			}

			total += counts[row]
		}

		src := data[rows*countSize:]
		if total > len(src) {
			return nil, fmt.Errorf("%w: RLE rows need %d bytes, have %d", ErrTruncated, total, len(src))
		}

		for i := range planes {
			planes[i] = make([]byte, size)

			for y := 0; y < h; y++ {
				row := i*h + y
				cnt := counts[row]

				if err := unpackBits(planes[i][y*w:(y+1)*w], src[:cnt]); err != nil {
					return nil, fmt.Errorf("RLE row %d: %w", row, err)
				}

				src = src[cnt:]
			}
		}
	case ZIP, ZIPPrediction:
		if n*size > len(data)*maxDeflateRatio {
			return nil, fmt.Errorf("%w: %d compressed bytes cannot inflate to %d", ErrCorrupt, len(data), n*size)
		}

		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		defer zr.Close()

		raw := make([]byte, n*size)
		if _, err := io.ReadFull(zr, raw); err != nil {
			return nil, fmt.Errorf("%w: inflate: %v", ErrTruncated, err)
		}

		if c == ZIPPrediction {
			for row := 0; row < n*h; row++ {
				line := raw[row*w : (row+1)*w]
				for x := 1; x < len(line); x++ {
					line[x] += line[x-1]
				}
			}
		}

		for i := range planes {
			planes[i] = raw[i*size : (i+1)*size]
		}
	default:
		return nil, fmt.Errorf("%w: method %d", ErrUnsupportedCompression, c)
	}

	return planes, nil
}

// unpackBits expands one PackBits row into dst, which must be filled exactly.
func unpackBits(dst, src []byte) error {
	i, j := 0, 0

	for j < len(dst) {
		if i >= len(src) {
			return fmt.Errorf("%w: row ends after %d of %d bytes", ErrTruncated, j, len(dst))
		}

		n := int(int8(src[i]))
		i++

		switch {
		case n >= 0:
			cnt := n + 1
			if i+cnt > len(src) {
				return fmt.Errorf("%w: literal run", ErrTruncated)
			}

			if j+cnt > len(dst) {
				return fmt.Errorf("%w: literal run overflows row", ErrCorrupt)
			}

			copy(dst[j:], src[i:i+cnt])
			i += cnt
			j += cnt
		case n == -128:
		default:
			cnt := 1 - n
			if i >= len(src) {
				return fmt.Errorf("%w: repeat run", ErrTruncated)
			}

			if j+cnt > len(dst) {
				return fmt.Errorf("%w: repeat run overflows row", ErrCorrupt)
			}

			b := src[i]
			i++

			for k := 0; k < cnt; k++ {
				dst[j+k] = b
			}

			j += cnt
		}
	}

	return nil
}

// toNRGBA interleaves color planes and an optional alpha plane.
func toNRGBA(mode ColorMode, rect image.Rectangle, planes [][]byte, alpha []byte) *image.NRGBA {
	img := image.NewNRGBA(rect)

	for i, o := 0, 0; i < rect.Dx()*rect.Dy(); i, o = i+1, o+4 {
		if mode == Grayscale {
			v := planes[0][i]
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = v, v, v
		} else {
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = planes[0][i], planes[1][i], planes[2][i]
		}

		if alpha != nil {
			img.Pix[o+3] = alpha[i]
		} else {
			img.Pix[o+3] = 0xff
		}
	}

	return img
}
