// internal/media/loader.go
// Resolves the image reference given to the create-post flow into bytes ready for upload

package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
)

// MaxImageSize is the largest image the backend accepts
const MaxImageSize = 10 << 20

var (
	ErrEmptyReference = apperror.Validation("image is required")
	ErrTooLarge       = apperror.Validation("file size exceeds maximum of 10MB")
	ErrTypeNotAllowed = apperror.Validation("file type not allowed")
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Image is a loaded, validated image
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DataURI renders the image as an embedded data URI
func (i *Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.ContentType, base64.StdEncoding.EncodeToString(i.Data))
}

type LoaderConfig struct {
	S3Region   string
	HTTPClient *http.Client
	S3Client   s3iface.S3API // optional, created lazily from S3Region otherwise
}

// Loader reads images from data URIs, base64, local files, http(s) URLs and s3:// objects
type Loader struct {
	httpClient *http.Client
	s3Client   s3iface.S3API
	region     string
	now        func() time.Time
}

func NewLoader(config LoaderConfig) *Loader {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{
		httpClient: httpClient,
		s3Client:   config.S3Client,
		region:     config.S3Region,
		now:        time.Now,
	}
}

// Load resolves ref and validates the result
func (l *Loader) Load(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrEmptyReference
	}

	var (
		data []byte
		name string
		err  error
	)

	switch {
	case strings.HasPrefix(ref, "data:"):
		var contentType string
		data, contentType, err = decodeDataURI(ref)
		name = "image" + allowedTypes[contentType]
	case strings.HasPrefix(ref, "s3://"):
		data, name, err = l.loadS3(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, name, err = l.loadHTTP(ctx, ref)
	default:
		data, name, err = l.loadLocal(ref)
	}
	if err != nil {
		return nil, err
	}

	return l.build(name, data)
}

func (l *Loader) build(name string, data []byte) (*Image, error) {
	if int64(len(data)) > MaxImageSize {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, apperror.Validation("image is empty")
	}

	contentType := http.DetectContentType(data)
	if _, ok := allowedTypes[contentType]; !ok {
		// Sniffing misses some formats; fall back to the extension
		contentType = extensionTypes[strings.ToLower(filepath.Ext(name))]
	}
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, ErrTypeNotAllowed
	}

	return &Image{
		Filename:    l.generateFilename(ext),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (l *Loader) loadLocal(ref string) ([]byte, string, error) {
	path := strings.TrimPrefix(ref, "file://")

	info, err := os.Stat(path)
	if err != nil {
		if base64Pattern.MatchString(ref) {
			data, decodeErr := base64.StdEncoding.DecodeString(ref)
			if decodeErr == nil {
				return data, "image.jpg", nil
			}
		}
		return nil, "", apperror.Wrap(apperror.KindValidation, "image not found", err)
	}
	if info.IsDir() {
		return nil, "", apperror.Validation("image path is a directory")
	}
	if info.Size() > MaxImageSize {
		return nil, "", ErrTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	return data, filepath.Base(path), nil
}

func (l *Loader) loadHTTP(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", apperror.Wrap(apperror.KindValidation, "invalid image URL", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", apperror.Wrap(apperror.KindNetwork, "failed to download image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperror.New(apperror.KindNotFound, fmt.Sprintf("image download failed with status %d", resp.StatusCode))
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(req.URL.Path), nil
}

func (l *Loader) loadS3(ctx context.Context, ref string) ([]byte, string, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, "", apperror.Validation("s3 reference must look like s3://bucket/key")
	}

	client, err := l.s3()
	if err != nil {
		return nil, "", err
	}

	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", apperror.Wrap(apperror.KindNetwork, "failed to download from S3", err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > MaxImageSize {
		return nil, "", ErrTooLarge
	}

	data, err := readLimited(out.Body)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(key), nil
}

func (l *Loader) s3() (s3iface.S3API, error) {
	if l.s3Client != nil {
		return l.s3Client, nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(l.region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	l.s3Client = s3.New(sess)
	return l.s3Client, nil
}

func (l *Loader) generateFilename(ext string) string {
	return fmt.Sprintf("%s_%d%s", uuid.New().String(), l.now().Unix(), ext)
}

func readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindNetwork, "failed to read image", err)
	}
	if n > MaxImageSize {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}

func decodeDataURI(ref string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", apperror.Validation("malformed data URI")
	}

	parts := strings.Split(header, ";")
	contentType := strings.ToLower(parts[0])
	isBase64 := false
	for _, p := range parts[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, "", apperror.Validation("data URI must be base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apperror.Wrap(apperror.KindValidation, "malformed data URI", err)
	}
	return data, contentType, nil
}
