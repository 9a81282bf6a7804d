package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// goodReply - 안내가 필요 없을 때 모델이 돌려주는 값
const goodReply = "GOOD"

// TextGenerator - 텍스트 모델 호출
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string, jsonOutput bool) (string, error)
}

// Checker - 프롬프트가 서비스 범위를 벗어나면 짧은 안내 문구 생성
type Checker struct {
	gen    TextGenerator
	model  string
	logger *zap.Logger
}

// NewChecker - Checker 생성
func NewChecker(gen TextGenerator, modelName string, logger *zap.Logger) *Checker {
	return &Checker{gen: gen, model: modelName, logger: logger}
}

// CheckPrompt - 안내 문구, 필요 없거나 실패하면 빈 문자열
func (c *Checker) CheckPrompt(ctx context.Context, userPrompt string) string {
	text, err := c.gen.GenerateText(ctx, c.model, buildCheckPrompt(userPrompt), false)
	if err != nil {
		c.logger.Warn("⚠️  [Notify] Check failed, skipping notification", zap.Error(err))
		return ""
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, goodReply) {
		return ""
	}

	c.logger.Info("💬 [Notify] Redirect suggested", zap.String("message", text))
	return text
}

func buildCheckPrompt(userPrompt string) string {
	return fmt.Sprintf(`You are the friendly assistant of an image generator for Omani men's traditional clothing (dishdasha, bisht, khanjar, musar). A user submitted this prompt:

'%[1]s'

If the prompt fits Omani men's traditional clothing, reply with exactly: GOOD

Otherwise reply with a playful redirect of at most 6 words, in the same language as the prompt, with an emoji. Examples:
- animals: 🐪 نحن للأزياء وليس الحيوانات!
- women, girls, couples, families or mixed groups: 👔 متخصصون في الأزياء الرجالية فقط!
- cars: 🚗 Cars? We do dishdashas!
- food: 🍽️ نطرز دشاديش ما نطبخ!
- buildings: 🏛️ نصمم أزياء ما عمارات!
- indecent content: الملابس التقليدية أجمل! 👌
- videos or animation: 📸 Images only, not videos!
- posters: 🖼️ We generate images, not posters!
A man in a car, a boy, or a group of men is GOOD.

USER PROMPT: %[1]s
YOUR RESPONSE:`, userPrompt)
}
