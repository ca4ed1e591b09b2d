package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:           "msg_test_123",
		Model:        "claude-sonnet-4-5-20250929",
		StopReason:   "end_turn",
		StopSequence: "STOP",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: `{"home_team":`},
			{Type: "text", Text: `"Team A"}`},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 2000,
			CacheReadInputTokens:     3000,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "STOP", resp.StopSequence)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, `{"home_team":"Team A"}`, resp.Text())
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
	assert.Equal(t, int64(50), resp.Usage.OutputTokens)
	assert.Equal(t, int64(2000), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, int64(3000), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{ID: "msg_empty", StopReason: "max_tokens"})
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Equal(t, "", resp.Text())
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestToSDKMessages_Attachments(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{
			Role:    "user",
			Content: "Extract the score.",
			Attachments: []Attachment{
				{MediaType: "image/jpeg", Data: []byte{0xff, 0xd8}},
				{MediaType: "application/pdf", Data: []byte("%PDF-1.4")},
				{MediaType: "text/csv", Data: []byte("a,b\n1,2")},
			},
		},
		{Role: "assistant", Content: "{"},
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	require.Len(t, msgs[0].Content, 4)
	assert.NotNil(t, msgs[0].Content[0].OfImage)
	assert.NotNil(t, msgs[0].Content[1].OfDocument)
	require.NotNil(t, msgs[0].Content[2].OfText)
	assert.Equal(t, "a,b\n1,2", msgs[0].Content[2].OfText.Text)
	require.NotNil(t, msgs[0].Content[3].OfText)
	assert.Equal(t, "Extract the score.", msgs[0].Content[3].OfText.Text)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
}

func TestAttachmentKinds(t *testing.T) {
	assert.True(t, Attachment{MediaType: "image/png"}.IsImage())
	assert.False(t, Attachment{MediaType: "image/tiff"}.IsImage())
	assert.True(t, Attachment{MediaType: "application/pdf"}.IsPDF())
	assert.False(t, Attachment{MediaType: "text/plain"}.IsPDF())
}

func TestToSDKSystemBlocks_CacheControl(t *testing.T) {
	blocks := toSDKSystemBlocks(BuildCachedSystemBlocks("You extract rosters."))
	require.Len(t, blocks, 1)
	assert.Equal(t, "You extract rosters.", blocks[0].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("1h"), blocks[0].CacheControl.TTL)
}

func TestTokenUsageEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
	assert.Equal(t, 0.0, u.EstimateCost("unknown-model"))
}
