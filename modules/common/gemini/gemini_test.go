package gemini

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"razza-canvas-server/modules/common/model"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429: too many requests"), true},
		{errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{errors.New("Quota exceeded for metric"), true},
		{errors.New("Rate Limit reached"), true},
		{errors.New("400 INVALID_ARGUMENT"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimitError(tt.err), "%v", tt.err)
	}
}

func TestRetryWithinSucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, attempts, err := RetryWithin(context.Background(), time.Second, time.Millisecond,
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("flaky")
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithinGivesUpAtBudget(t *testing.T) {
	start := time.Now()
	_, attempts, err := RetryWithin(context.Background(), 60*time.Millisecond, 10*time.Millisecond,
		func(ctx context.Context) (int, error) {
			return 0, errors.New("down")
		})

	assert.EqualError(t, err, "down")
	assert.Greater(t, attempts, 1)
	assert.Less(t, time.Since(start), time.Second)
}

func responses(items ...*genai.GenerateContentResponse) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, r := range items {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func withParts(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestFirstImage(t *testing.T) {
	stream := responses(
		withParts(&genai.Part{Text: "here you go"}),
		withParts(&genai.Part{InlineData: &genai.Blob{Data: []byte("first"), MIMEType: "image/png"}}),
		withParts(&genai.Part{InlineData: &genai.Blob{Data: []byte("second"), MIMEType: "image/jpeg"}}),
	)

	data, mimeType, err := firstImage(stream)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, "image/png", mimeType)
}

func TestFirstImageTextOnly(t *testing.T) {
	_, _, err := firstImage(responses(withParts(&genai.Part{Text: "I can't draw that"})))
	assert.ErrorIs(t, err, model.ErrNoImageProduced)
	assert.Equal(t, model.KindUpstream, model.KindOf(err))
}

func TestFirstImageStreamError(t *testing.T) {
	stream := func(yield func(*genai.GenerateContentResponse, error) bool) {
		yield(nil, errors.New("stream broke"))
	}
	_, _, err := firstImage(stream)
	assert.ErrorIs(t, err, model.ErrUpstreamModel)
}

func TestFirstImageKeepsDeadline(t *testing.T) {
	stream := func(yield func(*genai.GenerateContentResponse, error) bool) {
		yield(nil, context.DeadlineExceeded)
	}
	_, _, err := firstImage(stream)
	assert.ErrorIs(t, err, model.ErrUpstreamModel)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFirstText(t *testing.T) {
	resp := withParts(&genai.Part{Text: "  {\"a\":"}, &genai.Part{Text: "1}  "})
	assert.Equal(t, "{\"a\":1}", firstText(resp))
	assert.Equal(t, "", firstText(&genai.GenerateContentResponse{}))
}
