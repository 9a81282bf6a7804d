package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"razza-canvas-server/modules/common/model"
)

// DirSource - 로컬 디렉터리 트리
// root/<category>/<file> 또는 root/<category>/<subcategory>/.../<file>
type DirSource struct {
	root string
}

// NewDirSource - DirSource 생성
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// List - 하위 디렉터리를 재귀적으로 탐색
func (s *DirSource) List(ctx context.Context) ([]model.ReferenceImage, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read library root %s: %w", s.root, err)
	}

	var images []model.ReferenceImage
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		category := entry.Name()
		images = append(images, s.scanCategory(category)...)
	}
	return images, nil
}

func (s *DirSource) scanCategory(category string) []model.ReferenceImage {
	var images []model.ReferenceImage
	categoryDir := filepath.Join(s.root, category)

	// 읽을 수 없는 하위 디렉터리는 건너뜀
	_ = filepath.WalkDir(categoryDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && p != categoryDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !IsImageFile(d.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(categoryDir, p)
		if relErr != nil {
			return nil
		}
		subcategory := ""
		if dir := filepath.Dir(rel); dir != "." {
			subcategory = filepath.ToSlash(dir)
			subcategory, _, _ = strings.Cut(subcategory, "/")
		}

		images = append(images, model.ReferenceImage{
			Category:     category,
			Subcategory:  subcategory,
			Filename:     d.Name(),
			Path:         p,
			RelativePath: relativePath(category, subcategory, d.Name()),
		})
		return nil
	})
	return images
}

// ReadBytes - 파일 읽기, 없으면 ErrReferenceMissing
func (s *DirSource) ReadBytes(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, model.ErrReferenceMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
