package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	// 匿名导入 (blank import) image解码器
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/ajdnik/imghash"
	_ "golang.org/x/image/webp"
)

// CalculateSHA256FromBytes 从字节切片计算 SHA-256 哈希。
// 上传的照片在内存中只有一份字节拷贝，直接哈希避免落盘往返。
func CalculateSHA256FromBytes(data []byte) string {
	hashBytes := sha256.Sum256(data)
	return hex.EncodeToString(hashBytes[:])
}

// CalculateSHA256FromReader 以流式方式计算 SHA-256，供大文件场景使用。
func CalculateSHA256FromReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CalculateSHA256 计算并返回一个文件的SHA-256哈希值。
func CalculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return CalculateSHA256FromReader(file)
}

// CalculatePerceptualHashFromImage 从已解码的 image.Image 对象计算感知哈希。
func CalculatePerceptualHashFromImage(img image.Image) string {
	phasher := imghash.NewPHash()
	pHash := phasher.Calculate(img)
	return fmt.Sprintf("%d", pHash)
}

// CalculatePerceptualHash 计算并返回一个图片文件的感知哈希(pHash)值。
func CalculatePerceptualHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return "", err
	}

	return CalculatePerceptualHashFromImage(img), nil
}
