package media

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
)

var ErrBadPPM = errors.New("malformed ppm frame")

// ReadPPM reads one binary (P6) PPM image with 8-bit samples. It returns
// io.EOF when r is exhausted before a new frame starts.
func ReadPPM(r *bufio.Reader) (*image.NRGBA, error) {
	magic := make([]byte, 2)
	if _, err := io.ReadFull(r, magic); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadPPM
		}
		return nil, err
	}
	if magic[0] != 'P' || magic[1] != '6' {
		return nil, fmt.Errorf("%w: magic %q", ErrBadPPM, magic)
	}

	var header [3]int
	for i := range header {
		v, err := readHeaderInt(r)
		if err != nil {
			return nil, err
		}
		header[i] = v
	}
	w, h, maxVal := header[0], header[1], header[2]
	if w <= 0 || h <= 0 || maxVal <= 0 || maxVal > 255 {
		return nil, fmt.Errorf("%w: header %dx%d max %d", ErrBadPPM, w, h, maxVal)
	}

	rgb := make([]byte, w*h*3)
	if _, err := io.ReadFull(r, rgb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPPM, err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(rgb); i, j = i+3, j+4 {
		img.Pix[j] = scale(rgb[i], maxVal)
		img.Pix[j+1] = scale(rgb[i+1], maxVal)
		img.Pix[j+2] = scale(rgb[i+2], maxVal)
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

func scale(v byte, maxVal int) byte {
	if maxVal == 255 {
		return v
	}
	return byte(int(v) * 255 / maxVal)
}

// readHeaderInt skips whitespace and comments, then reads a decimal number
// and the single whitespace byte that terminates it.
func readHeaderInt(r *bufio.Reader) (int, error) {
	var c byte
	var err error
	for {
		if c, err = r.ReadByte(); err != nil {
			return 0, ErrBadPPM
		}
		if c == '#' {
			if _, err := r.ReadString('\n'); err != nil {
				return 0, ErrBadPPM
			}
			continue
		}
		if !isSpace(c) {
			break
		}
	}
	n := 0
	for {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: unexpected %q in header", ErrBadPPM, c)
		}
		n = n*10 + int(c-'0')
		if n > 1<<16 {
			return 0, fmt.Errorf("%w: dimension too large", ErrBadPPM)
		}
		if c, err = r.ReadByte(); err != nil {
			return 0, ErrBadPPM
		}
		if isSpace(c) {
			return n, nil
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
