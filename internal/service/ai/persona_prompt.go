package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/weibo-seed/internal/model/persona"
)

const weiboAgentTemplate = `You are {name} (@{username}), a Weibo user.

Profile:
- Bio: {bio}
- Summary: {summary}
- Gender: {gender}
- Age: {age}
- MBTI: {mbti}
- Region: {country}

Stay in character as this user. Post, repost, comment and follow the way this person would on Weibo, and keep your tone consistent with the profile above.`

// PromptRenderer turns persona profiles into agent system prompts.
type PromptRenderer struct {
	template prompt.ChatTemplate
}

// NewPromptRenderer creates a renderer using the default Weibo agent template.
func NewPromptRenderer() *PromptRenderer {
	return &PromptRenderer{
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage(weiboAgentTemplate),
		),
	}
}

// BuildSystemPrompt renders the system message for one agent.
func (r *PromptRenderer) BuildSystemPrompt(ctx context.Context, p persona.Profile) (string, error) {
	messages, err := r.template.Format(ctx, promptVariables(p))
	if err != nil {
		return "", fmt.Errorf("failed to format agent prompt: %w", err)
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("agent prompt rendered no messages")
	}
	return messages[0].Content, nil
}

func promptVariables(p persona.Profile) map[string]any {
	return map[string]any{
		"name":     p.DisplayName,
		"username": p.Username,
		"bio":      p.Bio,
		"summary":  p.Summary,
		"gender":   p.Gender,
		"age":      p.Age,
		"mbti":     p.MBTI,
		"country":  p.Country,
	}
}
