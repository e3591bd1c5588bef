// Package imaging holds the pixel plumbing around the models: decoding from
// disk, channel order conversion, cropping and encoding.
//
// Every Mat produced here is 8-bit, 3-channel and in RGB order.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"gocv.io/x/gocv"
)

// ErrDecode is returned when a file exists but is not a decodable image
var ErrDecode = errors.New("could not decode image")

// LoadRGB reads an image file and converts it from OpenCV's BGR order to
// RGB. The caller owns the returned Mat.
func LoadRGB(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), fmt.Errorf("could not load image from %s: %w", path, err)
	}

	bgr := gocv.IMRead(path, gocv.IMReadColor)
	if bgr.Empty() {
		bgr.Close()
		return gocv.NewMat(), fmt.Errorf("could not load image from %s: %w", path, ErrDecode)
	}
	defer bgr.Close()

	rgb := gocv.NewMat()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)
	return rgb, nil
}

// Crop copies rect out of img into a new contiguous Mat. rect must be
// non-empty and lie inside the image.
func Crop(img gocv.Mat, rect image.Rectangle) (gocv.Mat, error) {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	if rect.Empty() || !rect.In(bounds) {
		return gocv.NewMat(), fmt.Errorf("crop %v outside image %v", rect, bounds)
	}

	region := img.Region(rect)
	defer region.Close()
	return region.Clone(), nil
}

// ToImage converts an RGB Mat into an *image.RGBA. gocv's own Mat.ToImage
// assumes BGR, which would swap the channels back.
func ToImage(rgb gocv.Mat) (*image.RGBA, error) {
	if rgb.Channels() != 3 || rgb.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("expected 8-bit 3-channel image, got type %v", rgb.Type())
	}

	width, height := rgb.Cols(), rgb.Rows()
	src := rgb
	if !rgb.IsContinuous() {
		src = rgb.Clone()
		defer src.Close()
	}
	data := src.ToBytes()

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s := (y*width + x) * 3
			d := out.PixOffset(x, y)
			out.Pix[d+0] = data[s+0]
			out.Pix[d+1] = data[s+1]
			out.Pix[d+2] = data[s+2]
			out.Pix[d+3] = 0xff
		}
	}
	return out, nil
}

// EncodeJPEG encodes an image at the given quality
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
