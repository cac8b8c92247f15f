package simplemirror

import (
	"bytes"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MinImageWidth  = 500
	MinImageHeight = 500
)

// ImageFolder is the folder whose content goes through the admission filter.
const ImageFolder = "image"

// AdmissionFilter rejects images that are small in both dimensions.
type AdmissionFilter struct {
	MinWidth  int
	MinHeight int
}

// DefaultAdmissionFilter uses the 500x500 threshold.
func DefaultAdmissionFilter() AdmissionFilter {
	return AdmissionFilter{MinWidth: MinImageWidth, MinHeight: MinImageHeight}
}

// Admit decodes data and reports whether the image may be mirrored.
// An image is rejected only when it is narrower than MinWidth AND shorter than
// MinHeight; either dimension alone reaching the threshold admits it.
// Undecodable data returns an error.
func (f AdmissionFilter) Admit(data []byte) (bool, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return false, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() < f.MinWidth && b.Dy() < f.MinHeight {
		return false, nil
	}
	return true, nil
}

// AdmitImage applies the default admission filter.
func AdmitImage(data []byte) (bool, error) {
	return DefaultAdmissionFilter().Admit(data)
}
