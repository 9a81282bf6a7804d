package model

import "time"

// UserCredit - user_credits 테이블 구조
type UserCredit struct {
	UserID    string    `json:"user_id"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionType - credit_transactions.type 값
type TransactionType string

const (
	TransactionInitial TransactionType = "initial"
	TransactionAdd     TransactionType = "add"
	TransactionDeduct  TransactionType = "deduct"
)

// CreditTransaction - credit_transactions 테이블 구조 (append-only)
type CreditTransaction struct {
	ID          string          `json:"id,omitempty"`
	UserID      string          `json:"user_id"`
	Amount      int             `json:"amount"` // 차감은 음수
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Generation - user_generations 테이블 구조
type Generation struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Prompt    string    `json:"prompt"` // 사용자가 입력한 원본 프롬프트
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CallbackStatusPending - 새 콜백 요청 상태
const CallbackStatusPending = "pending"

// CallbackRequest - callback_requests 테이블 구조 (크레딧 패키지 구매 상담 요청)
type CallbackRequest struct {
	ID             string    `json:"id,omitempty"`
	UserID         string    `json:"user_id"`
	Contact        string    `json:"contact"`
	Notes          *string   `json:"notes"`
	PackageCredits *int      `json:"package_credits"`
	PackagePrice   *float64  `json:"package_price"` // OMR
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReferenceImage - 레퍼런스 라이브러리의 이미지 한 장
type ReferenceImage struct {
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory,omitempty"` // 카테고리 바로 아래 파일이면 빈 값
	Filename     string `json:"filename"`
	Path         string `json:"path"`
	RelativePath string `json:"relativePath"`
}

// MaxPromptLength - 프롬프트 최대 글자 수
const MaxPromptLength = 2000

// RandomFilename - 분석 결과에서 "카테고리 안에서 아무거나"를 뜻하는 값
const RandomFilename = "random"

// SelectedImage - 분석 모델이 고른 레퍼런스
type SelectedImage struct {
	Category    string  `json:"category"`
	Subcategory *string `json:"subcategory"`
	Filename    string  `json:"filename"`
	Instruction string  `json:"instruction"`
}

// SubcategoryValue - nil 이면 빈 문자열
func (s SelectedImage) SubcategoryValue() string {
	if s.Subcategory == nil {
		return ""
	}
	return *s.Subcategory
}

// AnalysisResult - 분석 단계 결과 (요청 단위, 저장하지 않음)
type AnalysisResult struct {
	NeedsReferences    bool            `json:"needs_references"`
	OrientationContext *string         `json:"orientation_context"`
	SelectedImages     []SelectedImage `json:"selected_images"`
	SubjectDescription string          `json:"subject_description"`
	SceneDescription   string          `json:"scene_description"`
	StyleNotes         string          `json:"style_notes"`

	// Degraded - 모델 호출/파싱 실패로 원본 프롬프트만 사용하는 상태
	Degraded bool `json:"-"`
}

// ResolvedReference - 실제 파일로 확정된 레퍼런스
type ResolvedReference struct {
	Image       ReferenceImage
	Instruction string
	Requested   string // 분석 결과의 filename (random 포함)
	Data        []byte
	MIMEType    string
}

// SubstitutionKind - 요청과 다른 결과로 대체된 종류
type SubstitutionKind string

const (
	SubstitutionRandomPick       SubstitutionKind = "random_pick"
	SubstitutionFallbackPick     SubstitutionKind = "fallback_pick"
	SubstitutionDropped          SubstitutionKind = "dropped"
	SubstitutionDuplicate        SubstitutionKind = "duplicate"
	SubstitutionMissingFile      SubstitutionKind = "missing_file"
	SubstitutionSafeDefault      SubstitutionKind = "safe_default"
	SubstitutionAnalysisDegraded SubstitutionKind = "analysis_degraded"
)

// Substitution - fallback 이 발생했다는 구조화된 신호
type Substitution struct {
	Stage       string           `json:"stage"`
	Kind        SubstitutionKind `json:"kind"`
	Category    string           `json:"category,omitempty"`
	Subcategory string           `json:"subcategory,omitempty"`
	Requested   string           `json:"requested,omitempty"`
	Resolved    string           `json:"resolved,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// 생성 파이프라인 단계 이름 (로그, 이벤트, Substitution.Stage)
const (
	StageAuthChecked      = "auth_checked"
	StageRateLimitChecked = "rate_limit_checked"
	StageCreditsChecked   = "credits_checked"
	StagePromptValidated  = "prompt_validated"
	StageAnalyzed         = "analyzed"
	StageImageComposed    = "image_composed"
	StagePromptEnhanced   = "prompt_enhanced"
	StageImageGenerated   = "image_generated"
	StagePersisted        = "persisted"
	StageCreditsDebited   = "credits_debited"
	StageResponded        = "responded"
)
