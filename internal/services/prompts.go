package services

import (
	"fmt"
	"strings"

	"habitly/pkg/llm"
)

// Answer is one sanitized test answer.
type Answer struct {
	Question string
	Value    string
}

func buildCreativeMessages(in PipelineInput) []llm.Message {
	var system strings.Builder
	system.WriteString("You are a habit coach. Design one themed habit series for the user ")
	system.WriteString("based on their test answers. A series has a short title, a one paragraph ")
	system.WriteString("description and between 3 and 5 concrete daily actions. For each action ")
	system.WriteString("give a name, what to do, and how hard it is (low, medium or high).\n")
	system.WriteString(fmt.Sprintf("Write everything in the language with code %q.", in.Language))

	var user strings.Builder
	user.WriteString("Test answers:\n")
	for _, a := range in.Answers {
		user.WriteString(fmt.Sprintf("- %s: %s\n", a.Question, a.Value))
	}
	if in.AssistantContext != "" {
		user.WriteString("\nAdditional context from the user's assistant:\n")
		user.WriteString(in.AssistantContext)
		user.WriteString("\n")
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

const seriesJSONShape = `{
  "title": "string",
  "description": "string",
  "actions": [
    {"name": "string", "description": "string", "difficulty": "low | medium | high"}
  ]
}`

func buildStructureMessages(in PipelineInput, previous string) []llm.Message {
	var system strings.Builder
	system.WriteString("Extract the habit series described by the user message into JSON.\n")
	system.WriteString("Return ONLY valid JSON, no extra text, in this format:\n")
	system.WriteString(seriesJSONShape)
	system.WriteString(fmt.Sprintf("\nKeep the text in the language with code %q.", in.Language))

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: previous},
	}
}

func buildSchemaMessages(in PipelineInput, previous string) []llm.Message {
	var system strings.Builder
	system.WriteString("You validate and repair JSON for a habit series.\n")
	system.WriteString("CRITICAL REQUIREMENTS:\n")
	system.WriteString("1. Keys title, description and actions must all be present and non-empty\n")
	system.WriteString("2. actions must contain between 3 and 5 items\n")
	system.WriteString("3. Every action has non-empty name, description and difficulty\n")
	system.WriteString("4. difficulty is exactly one of low, medium, high\n")
	system.WriteString("5. Do not add keys and do not translate the text\n")
	system.WriteString(fmt.Sprintf("6. The text stays in the language with code %q\n", in.Language))
	system.WriteString("Return ONLY the corrected JSON object:\n")
	system.WriteString(seriesJSONShape)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: previous},
	}
}
