package generateimage

import (
	"fmt"

	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/response"
)

// GenerateRequest - POST /api/generate
type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"` // "1:1", "16:9", "9:16", "4:3", "3:4"
}

// ComponentUsed - 실제로 첨부된 레퍼런스
type ComponentUsed struct {
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory,omitempty"`
	Filename     string `json:"filename"`
	RelativePath string `json:"relativePath"`
	Instruction  string `json:"instruction"`
}

// GenerateResponse - 생성 결과
type GenerateResponse struct {
	Success          bool                 `json:"success"`
	ImageURL         string               `json:"imageUrl"`
	EnhancedPrompt   string               `json:"enhancedPrompt"`
	RemainingCredits int                  `json:"remainingCredits"`
	ComponentsUsed   []ComponentUsed      `json:"componentsUsed"`
	Substitutions    []model.Substitution `json:"substitutions"`
	Notification     string               `json:"notification,omitempty"`
	GenerationTime   int64                `json:"generationTime"` // ms
	GenerationID     string               `json:"generationId,omitempty"`
	RequestID        string               `json:"requestId"`
}

// ValidateRequest - POST /api/validate, /api/notifications
type ValidateRequest struct {
	Prompt string `json:"prompt"`
}

// ValidateResponse - 프롬프트 사전 검사 결과
type ValidateResponse struct {
	Success        bool   `json:"success"`
	EnhancedPrompt string `json:"enhancedPrompt,omitempty"`
	UsedDefault    bool   `json:"usedDefault,omitempty"`
	Notification   string `json:"notification,omitempty"`
}

// PipelineError - 어느 단계에서 멈췄는지 담은 에러
type PipelineError struct {
	Stage             string
	RequestID         string
	RetryAfterSeconds int
	Err               error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Kind - 실패 분류
func (e *PipelineError) Kind() model.Kind {
	return model.KindOf(e.Err)
}

// Code - 클라이언트에 내려줄 에러 코드
func (e *PipelineError) Code() string {
	return response.MapError(e.Err).Code
}
