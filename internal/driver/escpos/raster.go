package escpos

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// loadImage decodes a PNG, JPEG or GIF file.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nie można otworzyć obrazu: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("nie można zdekodować obrazu %s: %w", path, err)
	}
	return img, nil
}

// resizeToWidth scales src to targetWidth dots with nearest neighbour
// sampling, keeping the aspect ratio.
func resizeToWidth(src image.Image, targetWidth int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || w == targetWidth {
		return src
	}

	scale := float64(targetWidth) / float64(w)
	newHeight := int(float64(h) * scale)
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx := bounds.Min.X + int(float64(x)/scale)
			sy := bounds.Min.Y + int(float64(y)/scale)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// rasterImage converts img to a GS v 0 raster command, darker than half
// intensity printing black. The width is cut down to a multiple of 8.
func rasterImage(img image.Image) []byte {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	width -= width % 8

	rowBytes := width / 8
	raster := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if a < 0x8000 {
				continue
			}
			if (r+g+b)/3 < 0x8000 {
				raster[y*rowBytes+x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}
	return rasterCommand(rowBytes, height, raster)
}

func rasterCommand(rowBytes, height int, raster []byte) []byte {
	header := []byte{
		gs, 'v', '0', 0x00,
		byte(rowBytes), byte(rowBytes >> 8),
		byte(height), byte(height >> 8),
	}
	return append(header, raster...)
}

// ruledRaster draws a horizontal ruled line of the given thickness in dots.
// segments holds start and end dot pairs. Broken and chain styles leave
// regular gaps.
func ruledRaster(lineWidth, thickness, style int, segments [][2]int) []byte {
	lineWidth -= lineWidth % 8
	rowBytes := lineWidth / 8
	if thickness < 1 {
		thickness = 1
	}
	rows := thickness
	if style == lineDouble {
		rows = thickness*2 + thickness
	}

	raster := make([]byte, rowBytes*rows)
	for y := 0; y < rows; y++ {
		if style == lineDouble && y >= thickness && y < 2*thickness {
			continue
		}
		for _, seg := range segments {
			for x := seg[0]; x <= seg[1] && x < lineWidth; x++ {
				if !dotOn(style, x) {
					continue
				}
				raster[y*rowBytes+x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}
	return rasterCommand(rowBytes, rows, raster)
}

func dotOn(style, x int) bool {
	switch style {
	case lineBroken:
		return x%16 < 10
	case lineChain:
		period := x % 24
		return period < 12 || (period >= 16 && period < 19)
	}
	return true
}
