package generateimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"razza-canvas-server/modules/analysis"
	"razza-canvas-server/modules/common/events"
	"razza-canvas-server/modules/common/gemini"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/ratelimit"
	"razza-canvas-server/modules/common/storage"
	"razza-canvas-server/modules/composer"
	"razza-canvas-server/modules/enhance"
	"razza-canvas-server/modules/imagegen"
	"razza-canvas-server/modules/library"
	"razza-canvas-server/modules/notify"
)

const (
	analysisModel = "analysis-model"
	enhanceModel  = "enhance-model"
	notifyModel   = "notify-model"
	imageModel    = "image-model"

	subjectDescription = "A man wearing a white dishdasha and a formal mussar turban"
)

const analysisJSON = `{
  "needs_references": true,
  "orientation_context": null,
  "selected_images": [
    {"category": "mussar", "subcategory": "formal", "filename": "m1.png", "instruction": "Use this mussar as the turban"},
    {"category": "dishdasha", "subcategory": null, "filename": "random", "instruction": "Use this dishdasha as the robe"}
  ],
  "subject_description": "A man wearing a white dishdasha and a formal mussar turban",
  "scene_description": "formal majlis with warm light",
  "style_notes": "photorealistic portrait"
}`

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type fakeText struct {
	mu        sync.Mutex
	calls     map[string]int
	responses map[string]string
	errs      map[string]error
}

func (f *fakeText) GenerateText(_ context.Context, modelName, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[modelName]++
	if err := f.errs[modelName]; err != nil {
		return "", err
	}
	return f.responses[modelName], nil
}

func (f *fakeText) count(modelName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[modelName]
}

type fakeImage struct {
	mu     sync.Mutex
	calls  int
	parts  []gemini.Part
	aspect string
	err    error
}

func (f *fakeImage) GenerateImage(_ context.Context, _ string, parts []gemini.Part, aspectRatio string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.parts = parts
	f.aspect = aspectRatio
	if f.err != nil {
		return nil, "", f.err
	}
	return pngBytes, "image/png", nil
}

type fakeLedger struct {
	mu        sync.Mutex
	balances  map[string]int
	deducts   int
	getErr    error
	deductErr error
}

func (f *fakeLedger) GetBalance(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.balances[userID], nil
}

func (f *fakeLedger) Deduct(_ context.Context, userID string, amount int, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deductErr != nil {
		return false, f.deductErr
	}
	if f.balances[userID] < amount {
		return false, nil
	}
	f.balances[userID] -= amount
	f.deducts++
	return true, nil
}

type fakeStore struct {
	mu   sync.Mutex
	gens []model.Generation
	err  error
}

func (f *fakeStore) InsertGeneration(_ context.Context, g *model.Generation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	g.ID = "gen-1"
	f.gens = append(f.gens, *g)
	return nil
}

type fakeLimiter struct {
	result ratelimit.Result
	err    error
	calls  int
}

func (f *fakeLimiter) Check(_ context.Context, _ string) (ratelimit.Result, error) {
	f.calls++
	return f.result, f.err
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(_ string, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEvents) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == events.TypeStage {
			out = append(out, e.Stage)
		}
	}
	return out
}

type harness struct {
	service *Service
	text    *fakeText
	image   *fakeImage
	ledger  *fakeLedger
	store   *fakeStore
	limiter *fakeLimiter
	events  *recordingEvents
}

func writeLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"mussar/formal/m1.png",
		"mussar/formal/m2.png",
		"dishdasha/d1.jpg",
	}
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("img:"+f), 0o644))
	}
	return root
}

func newHarness(t *testing.T, credits int) *harness {
	t.Helper()
	logger := zap.NewNop()

	h := &harness{
		text: &fakeText{
			calls: map[string]int{},
			responses: map[string]string{
				analysisModel: analysisJSON,
				enhanceModel:  subjectDescription + ", formal portrait, soft studio light",
				notifyModel:   "GOOD",
			},
			errs: map[string]error{},
		},
		image:   &fakeImage{},
		ledger:  &fakeLedger{balances: map[string]int{"user_1": credits}},
		store:   &fakeStore{},
		limiter: &fakeLimiter{result: ratelimit.Result{Allowed: true, Remaining: 9}},
		events:  &recordingEvents{},
	}

	lib := library.New(library.NewDirSource(writeLibrary(t)), logger)
	h.service = NewService(Deps{
		Limiter:   h.limiter,
		Ledger:    h.ledger,
		Store:     h.store,
		Library:   lib,
		Analyzer:  analysis.NewService(h.text, analysisModel, logger),
		Composer:  composer.New(lib, logger),
		Enhancer:  enhance.NewService(h.text, enhanceModel, 200*time.Millisecond, 10*time.Millisecond, logger),
		Notifier:  notify.NewChecker(h.text, notifyModel, logger),
		Generator: imagegen.NewService(h.image, imageModel, logger),
		Publisher: storage.NewPublisher("", "", "", logger),
		Events:    h.events,
	}, 1, 5*time.Second, logger)
	return h
}

func TestGenerateEndToEnd(t *testing.T) {
	h := newHarness(t, 1)

	resp, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha and turban, formal"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.RemainingCredits)
	assert.Contains(t, resp.EnhancedPrompt, subjectDescription)
	assert.True(t, strings.HasPrefix(resp.ImageURL, "data:image/png;base64,"))
	assert.Equal(t, "gen-1", resp.GenerationID)
	assert.NotEmpty(t, resp.RequestID)
	assert.Empty(t, resp.Notification)

	require.Len(t, resp.ComponentsUsed, 2)
	assert.Equal(t, "mussar/formal/m1.png", resp.ComponentsUsed[0].RelativePath)
	assert.Equal(t, "dishdasha/d1.jpg", resp.ComponentsUsed[1].RelativePath)
	assert.Equal(t, "Use this mussar as the turban", resp.ComponentsUsed[0].Instruction)

	// 텍스트 1 + 레퍼런스 2
	require.Len(t, h.image.parts, 3)
	assert.Equal(t, "image/png", h.image.parts[1].MIMEType)
	assert.Equal(t, "image/jpeg", h.image.parts[2].MIMEType)
	assert.Equal(t, imagegen.DefaultAspectRatio, h.image.aspect)

	require.Len(t, h.store.gens, 1)
	assert.Equal(t, "dishdasha and turban, formal", h.store.gens[0].Prompt)
	assert.Equal(t, "user_1", h.store.gens[0].UserID)
	assert.Equal(t, resp.ImageURL, h.store.gens[0].ImageURL)
	assert.Equal(t, 1, h.ledger.deducts)

	require.Len(t, resp.Substitutions, 1)
	assert.Equal(t, model.SubstitutionRandomPick, resp.Substitutions[0].Kind)
	assert.Equal(t, "dishdasha", resp.Substitutions[0].Category)

	assert.Equal(t, []string{
		model.StageAuthChecked,
		model.StageRateLimitChecked,
		model.StageCreditsChecked,
		model.StagePromptValidated,
		model.StageAnalyzed,
		model.StageImageComposed,
		model.StagePromptEnhanced,
		model.StageImageGenerated,
		model.StagePersisted,
		model.StageCreditsDebited,
		model.StageResponded,
	}, h.events.stages())
}

func TestGenerateWithoutCreditsMakesNoUpstreamCalls(t *testing.T) {
	h := newHarness(t, 0)

	resp, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha and turban"})
	require.Error(t, err)
	assert.Nil(t, resp)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, model.StageCreditsChecked, perr.Stage)
	assert.Equal(t, model.KindPolicy, perr.Kind())
	assert.ErrorIs(t, err, model.ErrInsufficientCredits)

	assert.Zero(t, h.text.count(analysisModel))
	assert.Zero(t, h.text.count(enhanceModel))
	assert.Zero(t, h.text.count(notifyModel))
	assert.Zero(t, h.image.calls)
	assert.Empty(t, h.store.gens)
}

func TestGenerateFailureKeepsCredits(t *testing.T) {
	h := newHarness(t, 2)
	h.image.err = errors.New("RESOURCE_EXHAUSTED")

	_, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha and turban, formal"})
	require.Error(t, err)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, model.StageImageGenerated, perr.Stage)
	assert.Equal(t, model.KindUpstream, perr.Kind())

	assert.Empty(t, h.store.gens)
	assert.Equal(t, 2, h.ledger.balances["user_1"])
	assert.Zero(t, h.ledger.deducts)

	h.events.mu.Lock()
	last := h.events.events[len(h.events.events)-1]
	h.events.mu.Unlock()
	assert.Equal(t, events.TypeFailed, last.Type)
}

func TestGenerateRateLimited(t *testing.T) {
	h := newHarness(t, 3)
	h.limiter.result = ratelimit.Result{Allowed: false, ResetTime: time.Now().Add(30 * time.Second)}

	_, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha"})
	require.Error(t, err)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, model.StageRateLimitChecked, perr.Stage)
	assert.ErrorIs(t, err, model.ErrRateLimited)
	assert.Greater(t, perr.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, perr.RetryAfterSeconds, 30)
	assert.Zero(t, h.text.count(analysisModel))
}

func TestGenerateLimiterErrorFailsOpen(t *testing.T) {
	h := newHarness(t, 1)
	h.limiter.err = errors.New("redis down")

	resp, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha and turban, formal"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     GenerateRequest
		wantErr error
	}{
		{"empty", GenerateRequest{Prompt: "   "}, model.ErrEmptyPrompt},
		{"too long", GenerateRequest{Prompt: strings.Repeat("a", model.MaxPromptLength+1)}, model.ErrPromptTooLong},
		{"bad ratio", GenerateRequest{Prompt: "dishdasha", AspectRatio: "2:1"}, model.ErrInvalidAspectRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3)
			_, err := h.service.Generate(context.Background(), "user_1", tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var perr *PipelineError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, model.StagePromptValidated, perr.Stage)
			assert.Zero(t, h.image.calls)
		})
	}
}

func TestValidatePromptCountsRunes(t *testing.T) {
	prompt, ratio, err := ValidatePrompt("  "+strings.Repeat("ع", model.MaxPromptLength)+" ", "")
	require.NoError(t, err)
	assert.Equal(t, model.MaxPromptLength, len([]rune(prompt)))
	assert.Equal(t, "1:1", ratio)
}

func TestGenerateUnauthenticated(t *testing.T) {
	h := newHarness(t, 3)

	_, err := h.service.Generate(context.Background(), "", GenerateRequest{Prompt: "dishdasha"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Zero(t, h.limiter.calls)
}

func TestGenerateDegradedAnalysisStillGenerates(t *testing.T) {
	h := newHarness(t, 1)
	h.text.responses[analysisModel] = "not json"

	resp, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha and turban"})
	require.NoError(t, err)

	assert.Empty(t, resp.ComponentsUsed)
	require.NotEmpty(t, resp.Substitutions)
	assert.Equal(t, model.SubstitutionAnalysisDegraded, resp.Substitutions[0].Kind)
	require.Len(t, h.image.parts, 1)
}

func TestGenerateEnhancementFailureUsesSafeDefault(t *testing.T) {
	h := newHarness(t, 1)
	h.text.errs[enhanceModel] = errors.New("429 Too Many Requests")

	resp, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha and turban"})
	require.NoError(t, err)

	assert.Equal(t, enhance.SafeDefault, resp.EnhancedPrompt)
	kinds := make([]model.SubstitutionKind, 0, len(resp.Substitutions))
	for _, s := range resp.Substitutions {
		kinds = append(kinds, s.Kind)
	}
	assert.Contains(t, kinds, model.SubstitutionSafeDefault)
}

func TestPersistAndDebitFailuresDoNotFailResponse(t *testing.T) {
	h := newHarness(t, 1)
	h.store.err = errors.New("insert failed")
	h.ledger.deductErr = errors.New("connection reset")

	resp, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha and turban"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ImageURL)
	assert.Empty(t, resp.GenerationID)
	assert.Equal(t, 1, resp.RemainingCredits)
}

func TestGenerateReturnsNotification(t *testing.T) {
	h := newHarness(t, 1)
	h.text.responses[notifyModel] = "🚗 Cars? We do dishdashas!"

	resp, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "a red sports car"})
	require.NoError(t, err)
	assert.Equal(t, "🚗 Cars? We do dishdashas!", resp.Notification)
}

func TestValidateRunsEnhanceAndNotify(t *testing.T) {
	h := newHarness(t, 0)

	resp, err := h.service.Validate(context.Background(), "user_1", "dishdasha and turban")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.EnhancedPrompt, subjectDescription)
	assert.Empty(t, resp.Notification)
	assert.Equal(t, 1, h.text.count(enhanceModel))
	assert.Equal(t, 1, h.text.count(notifyModel))
	assert.Zero(t, h.image.calls)

	_, err = h.service.Validate(context.Background(), "user_1", "")
	assert.ErrorIs(t, err, model.ErrEmptyPrompt)
}

func TestValidateAndNotifyAreRateLimited(t *testing.T) {
	h := newHarness(t, 3)
	h.limiter.result = ratelimit.Result{Allowed: false, ResetTime: time.Now().Add(30 * time.Second)}

	_, err := h.service.Validate(context.Background(), "user_1", "dishdasha and turban")
	assert.ErrorIs(t, err, model.ErrRateLimited)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Greater(t, perr.RetryAfterSeconds, 0)

	_, err = h.service.Notify(context.Background(), "user_1", "a red sports car")
	assert.ErrorIs(t, err, model.ErrRateLimited)

	assert.Equal(t, 2, h.limiter.calls)
	assert.Zero(t, h.text.count(enhanceModel))
	assert.Zero(t, h.text.count(notifyModel))
}

func TestValidateFailsOpenWhenLimiterDown(t *testing.T) {
	h := newHarness(t, 3)
	h.limiter.err = errors.New("redis: connection refused")

	resp, err := h.service.Notify(context.Background(), "user_1", "dishdasha")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, h.text.count(notifyModel))
}

func TestGenerateDeadlineKeepsCause(t *testing.T) {
	h := newHarness(t, 3)
	h.image.err = fmt.Errorf("stream: %w", context.DeadlineExceeded)

	_, err := h.service.Generate(context.Background(), "user_1", GenerateRequest{Prompt: "dishdasha"})
	assert.ErrorIs(t, err, model.ErrUpstreamModel)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, h.ledger.balances["user_1"])
}
