package composer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"razza-canvas-server/modules/analysis"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/library"
)

var errEmptyReference = errors.New("reference file is empty")

// Library - 레퍼런스 라이브러리에서 필요한 기능
type Library interface {
	PickRandom(images []model.ReferenceImage, category, subcategory string) (model.ReferenceImage, bool)
	ReadBytes(ctx context.Context, path string) ([]byte, error)
}

// Composer - 분석 결과를 실제 파일로 확정하고 마스터 프롬프트를 만듦
type Composer struct {
	lib    Library
	logger *zap.Logger
}

// New - Composer 생성
func New(lib Library, logger *zap.Logger) *Composer {
	return &Composer{lib: lib, logger: logger}
}

// Resolve - 선택 항목을 순서대로 파일에 대응
// random → 카테고리 랜덤, 정확히 일치 → 그대로, 불일치 → 같은 카테고리 랜덤, 없으면 제외
// 같은 파일은 처음 한 번만 사용, 랜덤은 아직 쓰지 않은 파일 중에서만 고름
func (c *Composer) Resolve(result *model.AnalysisResult, images []model.ReferenceImage) ([]model.ResolvedReference, []model.Substitution) {
	if result == nil || !result.NeedsReferences || len(result.SelectedImages) == 0 {
		return nil, nil
	}

	var refs []model.ResolvedReference
	var subs []model.Substitution
	used := make(map[string]bool)

	for _, sel := range result.SelectedImages {
		subcategory := sel.SubcategoryValue()
		sub := model.Substitution{
			Stage:       model.StageImageComposed,
			Category:    sel.Category,
			Subcategory: subcategory,
			Requested:   sel.Filename,
		}

		img, kind, ok := c.pick(sel, images, used)
		if !ok {
			sub.Kind = model.SubstitutionDropped
			sub.Reason = "no reference images in category"
			c.logger.Warn("⚠️  [Composer] Dropped selection",
				zap.String("category", sel.Category), zap.String("subcategory", subcategory),
				zap.String("requested", sel.Filename))
			subs = append(subs, sub)
			continue
		}

		if kind == model.SubstitutionDuplicate {
			sub.Kind = kind
			sub.Resolved = img.RelativePath
			sub.Reason = "reference already attached"
			c.logger.Info("🔁 [Composer] Skipped duplicate reference", zap.String("path", img.RelativePath))
			subs = append(subs, sub)
			continue
		}
		used[img.Path] = true

		if kind != "" {
			sub.Kind = kind
			sub.Resolved = img.RelativePath
			if kind == model.SubstitutionFallbackPick {
				sub.Reason = "requested file not in library"
				c.logger.Warn("⚠️  [Composer] File not found, picked another from category",
					zap.String("requested", sel.Filename), zap.String("resolved", img.RelativePath))
			} else {
				c.logger.Info("🎲 [Composer] Random pick", zap.String("resolved", img.RelativePath))
			}
			subs = append(subs, sub)
		}

		instruction := sel.Instruction
		if instruction == "" {
			instruction = analysis.DefaultInstruction(sel.Category)
		}
		refs = append(refs, model.ResolvedReference{
			Image:       img,
			Instruction: instruction,
			Requested:   sel.Filename,
		})
	}

	return refs, subs
}

// pick - kind 가 비어 있으면 요청한 파일 그대로
// 이미 붙인 파일이거나 카테고리의 파일을 모두 썼으면 SubstitutionDuplicate
func (c *Composer) pick(sel model.SelectedImage, images []model.ReferenceImage, used map[string]bool) (model.ReferenceImage, model.SubstitutionKind, bool) {
	if sel.Filename != model.RandomFilename {
		for _, img := range images {
			if img.Category != sel.Category || img.Filename != sel.Filename {
				continue
			}
			if sel.Subcategory != nil && img.Subcategory != *sel.Subcategory {
				continue
			}
			if used[img.Path] {
				return img, model.SubstitutionDuplicate, true
			}
			return img, "", true
		}
	}

	kind := model.SubstitutionRandomPick
	if sel.Filename != model.RandomFilename {
		kind = model.SubstitutionFallbackPick
	}

	unused := make([]model.ReferenceImage, 0, len(images))
	for _, img := range images {
		if !used[img.Path] {
			unused = append(unused, img)
		}
	}
	if img, ok := c.lib.PickRandom(unused, sel.Category, sel.SubcategoryValue()); ok {
		return img, kind, true
	}

	// 남은 파일은 없지만 카테고리 자체는 있음
	if img, ok := c.lib.PickRandom(images, sel.Category, sel.SubcategoryValue()); ok {
		return img, model.SubstitutionDuplicate, true
	}
	return model.ReferenceImage{}, "", false
}

// Load - 바이트를 읽음, 읽지 못했거나 비어 있는 레퍼런스는 빼고 계속
// 남은 레퍼런스 순서가 마스터 프롬프트 번호와 이미지 파트 순서가 됨
func (c *Composer) Load(ctx context.Context, refs []model.ResolvedReference) ([]model.ResolvedReference, []model.Substitution) {
	loaded := make([]model.ResolvedReference, 0, len(refs))
	var subs []model.Substitution

	for _, ref := range refs {
		data, err := c.lib.ReadBytes(ctx, ref.Image.Path)
		if err == nil && len(data) == 0 {
			err = errEmptyReference
		}
		if err != nil {
			c.logger.Warn("⚠️  [Composer] Couldn't read reference, dropping it",
				zap.String("path", ref.Image.RelativePath), zap.Error(err))
			subs = append(subs, model.Substitution{
				Stage:       model.StageImageComposed,
				Kind:        model.SubstitutionMissingFile,
				Category:    ref.Image.Category,
				Subcategory: ref.Image.Subcategory,
				Requested:   ref.Requested,
				Resolved:    ref.Image.RelativePath,
				Reason:      err.Error(),
			})
			continue
		}

		ref.Data = data
		ref.MIMEType = library.MIMEType(ref.Image.Filename)
		loaded = append(loaded, ref)
		c.logger.Debug("📷 [Composer] Added reference", zap.String("path", ref.Image.RelativePath))
	}

	return loaded, subs
}
