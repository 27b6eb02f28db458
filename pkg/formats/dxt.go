// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"encoding/binary"
	"fmt"
)

// dxtBlockSize returns the compressed byte count of one 4x4 block.
func dxtBlockSize(format IWiFormat) int {
	if format == IWiFormatDXT1 {
		return 8
	}
	return 16
}

// unpack565 expands a 5:6:5 packed color, replicating the high bits into
// the low ones the way the original decoder does.
func unpack565(c uint16) (r, g, b uint8) {
	r = uint8((c & 0xF800) >> 8)
	g = uint8((c & 0x07E0) >> 3)
	b = uint8((c & 0x001F) << 3)
	r |= r >> 5
	g |= g >> 6
	b |= b >> 5
	return r, g, b
}

// colorPalette builds the four interpolated block colors. The two-thirds
// blend applies only while c0 > c1; otherwise the midpoint is used for
// index 2, matching the reference reconstruction.
func colorPalette(c0, c1 uint16) [4][3]uint8 {
	r0, g0, b0 := unpack565(c0)
	r1, g1, b1 := unpack565(c1)

	var p [4][3]uint8
	p[0] = [3]uint8{r0, g0, b0}
	p[1] = [3]uint8{r1, g1, b1}
	if c0 > c1 {
		p[2] = [3]uint8{
			uint8((2*uint16(r0) + uint16(r1)) / 3),
			uint8((2*uint16(g0) + uint16(g1)) / 3),
			uint8((2*uint16(b0) + uint16(b1)) / 3),
		}
	} else {
		p[2] = [3]uint8{
			uint8((uint16(r0) + uint16(r1)) / 2),
			uint8((uint16(g0) + uint16(g1)) / 2),
			uint8((uint16(b0) + uint16(b1)) / 2),
		}
	}
	p[3] = [3]uint8{
		uint8((uint16(r0) + 2*uint16(r1)) / 3),
		uint8((uint16(g0) + 2*uint16(g1)) / 3),
		uint8((uint16(b0) + 2*uint16(b1)) / 3),
	}
	return p
}

// alphaPalette builds the eight interpolated DXT5 alpha values.
func alphaPalette(a0, a1 uint8) [8]uint8 {
	var p [8]uint8
	p[0], p[1] = a0, a1
	if a0 > a1 {
		for i := 0; i < 6; i++ {
			p[2+i] = uint8(((6-uint16(i))*uint16(a0) + (1+uint16(i))*uint16(a1)) / 7)
		}
	} else {
		for i := 0; i < 4; i++ {
			p[2+i] = uint8(((4-uint16(i))*uint16(a0) + (1+uint16(i))*uint16(a1)) / 5)
		}
		p[6] = 0
		p[7] = 255
	}
	return p
}

// decodeDXT decompresses block-compressed data into a top-down RGBA8
// buffer. Blocks on the right and bottom edges are clipped to the image.
func decodeDXT(format IWiFormat, data []byte, width, height int) ([]byte, error) {
	blockCountX := (width + 3) / 4
	blockCountY := (height + 3) / 4
	blockSize := dxtBlockSize(format)

	need := blockCountX * blockCountY * blockSize
	if len(data) < need {
		return nil, fmt.Errorf("%w: %d bytes of block data, need %d", ErrTruncatedIWiData, len(data), need)
	}

	out := make([]byte, width*height*4)
	offset := 0
	for by := 0; by < blockCountY; by++ {
		for bx := 0; bx < blockCountX; bx++ {
			block := data[offset : offset+blockSize]
			offset += blockSize

			var alphas [16]uint8
			colorBlock := block
			switch format {
			case IWiFormatDXT3:
				// 4-bit alpha per texel, replicated to 8 bits.
				for i := 0; i < 4; i++ {
					row := binary.LittleEndian.Uint16(block[i*2:])
					alphas[i*4+0] = uint8(((row >> 0) & 0x0F) * 0x11)
					alphas[i*4+1] = uint8(((row >> 4) & 0x0F) * 0x11)
					alphas[i*4+2] = uint8(((row >> 8) & 0x0F) * 0x11)
					alphas[i*4+3] = uint8(((row >> 12) & 0x0F) * 0x11)
				}
				colorBlock = block[8:]
			case IWiFormatDXT5:
				palette := alphaPalette(block[0], block[1])
				var bits uint64
				for i := 0; i < 6; i++ {
					bits |= uint64(block[2+i]) << (8 * i)
				}
				for i := 0; i < 16; i++ {
					alphas[i] = palette[(bits>>(3*i))&0x07]
				}
				colorBlock = block[8:]
			default:
				for i := range alphas {
					alphas[i] = 255
				}
			}

			c0 := binary.LittleEndian.Uint16(colorBlock[0:])
			c1 := binary.LittleEndian.Uint16(colorBlock[2:])
			indices := binary.LittleEndian.Uint32(colorBlock[4:])
			colors := colorPalette(c0, c1)

			for py := 0; py < 4; py++ {
				for px := 0; px < 4; px++ {
					x := bx*4 + px
					y := by*4 + py
					if x >= width || y >= height {
						continue
					}

					i := py*4 + px
					c := colors[(indices>>(2*i))&0x03]
					o := (y*width + x) * 4
					out[o+0] = c[0]
					out[o+1] = c[1]
					out[o+2] = c[2]
					out[o+3] = alphas[i]
				}
			}
		}
	}

	return out, nil
}

// flipVertical reverses the row order of an RGBA8 buffer in place.
func flipVertical(pixels []byte, width, height int) {
	stride := width * 4
	tmp := make([]byte, stride)
	for y := 0; y < height/2; y++ {
		top := pixels[y*stride : (y+1)*stride]
		bottom := pixels[(height-1-y)*stride : (height-y)*stride]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}
