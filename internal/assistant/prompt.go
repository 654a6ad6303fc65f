package assistant

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/cloo-solutions/kbrelay/internal/openai"
)

const assistantDescription = "You are an AI assistant and your task is to answer questions using the provided information."

var assistantInstructions = []string{
	"When a user asks a question, you will be provided with information about the question.",
	"Carefully read this information and provide a clear and concise answer to the user.",
	"Do not use phrases like 'based on my knowledge' or 'depending on the information'.",
}

func systemPrompt(references []domain.Document) string {
	var sb strings.Builder
	sb.WriteString(assistantDescription)
	sb.WriteString("\n\nYou must follow these instructions carefully:\n<instructions>\n")
	for i, ins := range assistantInstructions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, ins)
	}
	sb.WriteString("</instructions>")

	if len(references) > 0 {
		sb.WriteString("\n\nUse the following references from the knowledge base if it helps:\n<references>\n")
		for _, ref := range references {
			fmt.Fprintf(&sb, "[%s, page %d]\n%s\n\n", ref.Name, ref.Page, ref.Content)
		}
		sb.WriteString("</references>")
	}
	return sb.String()
}

// buildMessages lays out system prompt, prior turns, then the new prompt.
func buildMessages(references []domain.Document, history []domain.Message, prompt string) []openai.ChatMessage {
	messages := make([]openai.ChatMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatMessage{Role: string(domain.MessageRoleSystem), Content: systemPrompt(references)})
	for _, m := range history {
		if m.Role == domain.MessageRoleSystem {
			continue
		}
		messages = append(messages, openai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, openai.ChatMessage{Role: string(domain.MessageRoleUser), Content: prompt})
	return messages
}
