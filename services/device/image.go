package device

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/browserwing/contactwing/executor"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
)

// CropImage 将截图裁剪为 rect 区域并覆盖保存为 png
func CropImage(path string, rect executor.Rect) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read screenshot")
	}
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return errors.Errorf("screenshot %s is not an image (detected: %s)", path, kind.MIME.Value)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return errors.Wrap(err, "failed to decode screenshot")
	}

	r := image.Rect(rect.X1, rect.Y1, rect.X2, rect.Y2).Intersect(src.Bounds())
	if r.Empty() {
		return errors.Errorf("crop area %v outside screenshot %v", rect, src.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to save cropped image")
	}
	defer out.Close()
	return png.Encode(out, dst)
}
