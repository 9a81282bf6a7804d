package composer

import (
	"fmt"
	"strings"

	"razza-canvas-server/modules/common/model"
)

// SignatureStyle - 모든 마스터 프롬프트 끝에 붙는 고정 스타일
const SignatureStyle = "Cinematic Omani aesthetic, warm golden hour lighting with rich deep shadows, earthy desaturated color palette with traditional Omani color accents (indigo, burgundy, gold), medium format film photography look, shallow depth of field, dramatic side lighting, photorealistic, high quality."

// BuildMasterPrompt - 이미지 모델에 보낼 텍스트 파트
func BuildMasterPrompt(userPrompt string, result *model.AnalysisResult, enhanced string, refs []model.ResolvedReference) string {
	var b strings.Builder

	if result == nil || result.Degraded {
		b.WriteString(userPrompt)
		if enhanced != "" {
			b.WriteString("\n\n=== DIRECTION ===\n")
			b.WriteString(enhanced)
		}
		b.WriteString("\n\n")
		b.WriteString(SignatureStyle)
		return b.String()
	}

	b.WriteString("Generate a photorealistic image with the following specifications:\n\n")
	b.WriteString("=== SUBJECT ===\n")
	b.WriteString(result.SubjectDescription)
	b.WriteString("\n\n=== SCENE ===\n")
	b.WriteString(result.SceneDescription)
	b.WriteString("\n")

	if enhanced != "" {
		b.WriteString("\n=== DIRECTION ===\n")
		b.WriteString(enhanced)
		b.WriteString("\n")
	}

	if len(refs) > 0 {
		b.WriteString("\n=== CLOTHING REFERENCES (Use these EXACTLY as instructed) ===\n")
		for i, ref := range refs {
			fmt.Fprintf(&b, "\n[REFERENCE IMAGE %d]\n%s\n", i+1, ref.Instruction)
		}
	}

	b.WriteString("\n=== STYLE ===\n")
	b.WriteString(result.StyleNotes)
	b.WriteString("\n\n")
	b.WriteString(SignatureStyle)
	return b.String()
}
