package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

// Message IDs
const (
	MsgUnauthorized        = "Unauthorized"
	MsgRateLimited         = "RateLimited"
	MsgInsufficientCredits = "InsufficientCredits"
	MsgEmptyPrompt         = "EmptyPrompt"
	MsgPromptTooLong       = "PromptTooLong"
	MsgInvalidAspectRatio  = "InvalidAspectRatio"
	MsgInvalidRequest      = "InvalidRequest"
	MsgInvalidAmount       = "InvalidAmount"
	MsgGenerationFailed    = "GenerationFailed"
	MsgNotFound            = "NotFound"
	MsgInternalError       = "InternalError"
	MsgContactRequired     = "ContactRequired"
)

// Manager - 임베드된 TOML 번역 + Accept-Language 매칭
type Manager struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	tags    []language.Tag
	logger  *zap.Logger

	mu         sync.Mutex
	localizers map[language.Tag]*i18n.Localizer
}

// NewManager - defaultLang 이 매칭 실패 시 기본값
func NewManager(defaultLang string, logger *zap.Logger) (*Manager, error) {
	defaultTag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.toml")
	if err != nil {
		return nil, fmt.Errorf("failed to list locale files: %w", err)
	}

	// 기본 언어가 첫 번째여야 매칭 실패 시 기본값이 됨
	tags := []language.Tag{defaultTag}
	for _, file := range files {
		mf, err := bundle.LoadMessageFileFS(localeFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path.Base(file), err)
		}
		if mf.Tag != defaultTag {
			tags = append(tags, mf.Tag)
		}
	}

	logger.Info("🌐 [i18n] Translations loaded",
		zap.String("default", defaultTag.String()), zap.Int("languages", len(tags)))

	return &Manager{
		bundle:     bundle,
		matcher:    language.NewMatcher(tags),
		tags:       tags,
		logger:     logger,
		localizers: make(map[language.Tag]*i18n.Localizer),
	}, nil
}

// Match - Accept-Language 헤더에 가장 맞는 지원 언어
func (m *Manager) Match(acceptLanguage string) language.Tag {
	_, idx := language.MatchStrings(m.matcher, acceptLanguage)
	return m.tags[idx]
}

// Localize - 번역이 없으면 messageID 그대로
func (m *Manager) Localize(acceptLanguage, messageID string, data map[string]interface{}) string {
	tag := m.Match(acceptLanguage)

	m.mu.Lock()
	localizer, ok := m.localizers[tag]
	if !ok {
		localizer = i18n.NewLocalizer(m.bundle, tag.String())
		m.localizers[tag] = localizer
	}
	m.mu.Unlock()

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		m.logger.Debug("[i18n] Missing translation",
			zap.String("message_id", messageID), zap.String("lang", tag.String()), zap.Error(err))
		return messageID
	}
	return strings.TrimSpace(msg)
}
