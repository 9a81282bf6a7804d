package library

import (
	"context"
	"math/rand/v2"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/model"
)

// imageExtensions - 레퍼런스로 인정하는 확장자
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsImageFile - 확장자 검사 (대소문자 무시)
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(path.Ext(name))]
}

// Source - 레퍼런스 이미지 저장 위치 (디렉터리, S3)
type Source interface {
	List(ctx context.Context) ([]model.ReferenceImage, error)
	ReadBytes(ctx context.Context, path string) ([]byte, error)
}

// Library - 카테고리/서브카테고리로 나뉜 레퍼런스 이미지 모음
type Library struct {
	source Source
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option - Library 옵션
type Option func(*Library)

// WithRand - 랜덤 소스 지정 (테스트용 시드 고정)
func WithRand(rng *rand.Rand) Option {
	return func(l *Library) { l.rng = rng }
}

// New - Library 생성
func New(source Source, logger *zap.Logger, opts ...Option) *Library {
	seed := uint64(time.Now().UnixNano())
	l := &Library{
		source: source,
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListAvailableImages - 전체 목록, 읽을 수 없으면 빈 목록
func (l *Library) ListAvailableImages(ctx context.Context) []model.ReferenceImage {
	images, err := l.source.List(ctx)
	if err != nil {
		l.logger.Warn("⚠️  [Library] Could not read reference images, continuing without them", zap.Error(err))
		return []model.ReferenceImage{}
	}
	SortImages(images)
	return images
}

// PickRandom - 카테고리(+서브카테고리) 안에서 균등하게 하나 선택
func (l *Library) PickRandom(images []model.ReferenceImage, category, subcategory string) (model.ReferenceImage, bool) {
	matching := make([]model.ReferenceImage, 0, len(images))
	for _, img := range images {
		if img.Category != category {
			continue
		}
		if subcategory != "" && img.Subcategory != subcategory {
			continue
		}
		matching = append(matching, img)
	}
	if len(matching) == 0 {
		return model.ReferenceImage{}, false
	}

	// Fisher–Yates
	l.mu.Lock()
	for i := len(matching) - 1; i > 0; i-- {
		j := l.rng.IntN(i + 1)
		matching[i], matching[j] = matching[j], matching[i]
	}
	l.mu.Unlock()

	return matching[0], true
}

// ReadBytes - 이미지 바이트 읽기
func (l *Library) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	return l.source.ReadBytes(ctx, path)
}

// SortImages - category, subcategory, filename 순 정렬
func SortImages(images []model.ReferenceImage) {
	sort.Slice(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Subcategory != b.Subcategory {
			return a.Subcategory < b.Subcategory
		}
		return a.Filename < b.Filename
	})
}

// relativePath - category[/subcategory]/filename
func relativePath(category, subcategory, filename string) string {
	if subcategory == "" {
		return category + "/" + filename
	}
	return category + "/" + subcategory + "/" + filename
}

// MIMEType - 확장자로 MIME 결정, 모르면 image/jpeg
func MIMEType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
