package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReason("end_turn"),
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}
}

func TestBedrockClient_Complete(t *testing.T) {
	api := &fakeConverse{out: textOutput("```json\n{\"facts\":[\"a\"]}\n```")}
	client := NewBedrockClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), LLMRequest{
		Prompt:         "summarize",
		Temperature:    -1,
		ResponseSchema: FactsSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"facts":["a"]}`, resp.Text)
	assert.Equal(t, "anthropic.claude-3-haiku", resp.Model)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Nil(t, api.input.InferenceConfig)
	require.Len(t, api.input.System, 1)
	sys, ok := api.input.System[0].(*brtypes.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, jsonInstruction, sys.Value)
	require.Len(t, api.input.Messages, 1)
}

func TestBedrockClient_Errors(t *testing.T) {
	_, err := NewBedrockClient(&fakeConverse{}, "").Complete(context.Background(), LLMRequest{Prompt: "p"})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{}, "model").Complete(context.Background(), LLMRequest{Prompt: " "})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{err: errors.New("throttled")}, "model").Complete(context.Background(), LLMRequest{Prompt: "p"})
	assert.EqualError(t, err, "throttled")

	_, err = NewBedrockClient(&fakeConverse{out: &bedrockruntime.ConverseOutput{}}, "model").Complete(context.Background(), LLMRequest{Prompt: "p"})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{out: textOutput("   ")}, "model").Complete(context.Background(), LLMRequest{Prompt: "p"})
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}```"))
}

func TestFallbackClient(t *testing.T) {
	primary := &stubLLM{err: errors.New("primary down")}
	fallback := &stubLLM{text: "from fallback"}

	resp, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), LLMRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)
	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 1, fallback.calls())

	_, err = NewFallbackClient(primary, nil, nil).Complete(context.Background(), LLMRequest{Prompt: "p"})
	assert.EqualError(t, err, "primary down")

	failing := &stubLLM{err: errors.New("fallback down")}
	_, err = NewFallbackClient(primary, failing, nil).Complete(context.Background(), LLMRequest{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary down")
	assert.ErrorContains(t, err, "fallback down")

	ok := &stubLLM{text: "primary"}
	unused := &stubLLM{text: "fallback"}
	resp, err = NewFallbackClient(ok, unused, nil).Complete(context.Background(), LLMRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Zero(t, unused.calls())
}

func TestFallbackClient_SkipsFallbackWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &stubLLM{err: context.Canceled}
	fallback := &stubLLM{text: "late"}

	_, err := NewFallbackClient(primary, fallback, nil).Complete(ctx, LLMRequest{Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fallback.calls())
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "  ", "")
	assert.Error(t, err)
}
