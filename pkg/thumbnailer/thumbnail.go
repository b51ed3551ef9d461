package thumbnailer

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	// 匿名导入 image解码器
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// CreateBase64 生成缩略图并编码为可直接嵌入仪表盘的 data URI。
func CreateBase64(srcImage image.Image, width, height int) (string, error) {
	thumbImage := imaging.Thumbnail(srcImage, width, height, imaging.Lanczos)

	buf := new(bytes.Buffer)

	err := jpeg.Encode(buf, thumbImage, &jpeg.Options{Quality: 80})
	if err != nil {
		return "", err
	}

	encodedStr := base64.StdEncoding.EncodeToString(buf.Bytes())

	return "data:image/jpeg;base64," + encodedStr, nil
}

// Decode 解码一段图片字节并返回图像及其像素尺寸。
// 支持 jpeg/png/gif/webp，格式由解码器自动识别。
func Decode(data []byte) (image.Image, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	bounds := img.Bounds()
	return img, bounds.Dx(), bounds.Dy(), nil
}
