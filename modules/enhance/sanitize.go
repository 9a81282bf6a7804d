package enhance

import (
	"regexp"
	"strings"
)

// SafeDefault - 모델이 끝내 응답하지 못했을 때 쓰는 프롬프트
const SafeDefault = "omani man wearing traditional white dishdasha and colorful patterned Omani turban, neatly trimmed beard, closeup portrait, dramatic studio lighting with soft shadows, dark blurred background, photorealistic, high quality, ultra detailed"

// deniedTerms - 결과에서 항상 제거하는 단어
var deniedTerms = []string{
	"burkini", "burqini", "burkiny", "burquini",
	"swimsuit", "swim suit", "swimming suit", "swimwear",
	"bikini", "biqini", "bikiny", "bикини",
	"lingerie", "underwear", "bra", "panties",
	"naked", "nude", "topless", "bottomless",
	"revealing", "sexy", "erotic", "adult",
	"shorts", "mini skirt", "crop top", "tank top",
	"cleavage", "exposed", "bare", "skin showing",
}

// maxSanitizePasses - 제거 후 다시 붙어 생기는 단어까지 잡도록 반복
const maxSanitizePasses = 10

var (
	deniedPatterns = compileDenied(deniedTerms)

	headscarfPattern = regexp.MustCompile(`(?i)\bhead[\s-]?scarf\b`)
	emptyParens      = regexp.MustCompile(`\(\s*\)`)
	doubleCommas     = regexp.MustCompile(`,\s*,`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
	commaSpacing     = regexp.MustCompile(`\s*,\s*`)
)

// compileDenied - 단어마다 괄호, 단어 경계, 부분 문자열, 글자 사이 공백 패턴
func compileDenied(terms []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(terms)*4)
	for _, term := range terms {
		quoted := regexp.QuoteMeta(term)

		letters := make([]string, 0, len(term))
		for _, r := range term {
			letters = append(letters, regexp.QuoteMeta(string(r)))
		}

		patterns = append(patterns,
			regexp.MustCompile(`(?i)\(\s*`+quoted+`\s*\)`),
			regexp.MustCompile(`(?i)\b`+quoted+`\b`),
			regexp.MustCompile(`(?i)`+quoted),
			regexp.MustCompile(`(?i)`+strings.Join(letters, `\s*`)),
		)
	}
	return patterns
}

// Sanitize - 금지어 제거, headscarf → full hijab, 구두점/공백 정리
// 결과가 더 이상 바뀌지 않을 때까지 반복
func Sanitize(text string) string {
	current := text
	for i := 0; i < maxSanitizePasses; i++ {
		next := sanitizePass(current)
		if next == current {
			break
		}
		current = next
	}
	return current
}

func sanitizePass(text string) string {
	text = headscarfPattern.ReplaceAllString(text, "full hijab")
	for _, re := range deniedPatterns {
		text = re.ReplaceAllString(text, "")
	}

	text = emptyParens.ReplaceAllString(text, "")
	text = doubleCommas.ReplaceAllString(text, ",")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	text = commaSpacing.ReplaceAllString(text, ", ")
	return strings.Trim(text, ", ")
}

// ContainsDenied - 금지어 패턴이 하나라도 남아 있는지
func ContainsDenied(text string) bool {
	for _, re := range deniedPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
