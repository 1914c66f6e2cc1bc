package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const enhanceSystemPrompt = `You are a prompt enhancement specialist for a website builder.
Rewrite the user's request as a detailed, specific website brief: layout and sections,
visual style and color scheme, typography, interactive behavior, responsiveness and
accessibility. Keep every requirement the user stated. Reply with the enhanced brief only,
in at most two short paragraphs, without preamble or Markdown.`

const generateSystemPrompt = `You are an expert web developer. Produce one complete, self-contained
HTML document for the requested website. Use Tailwind CSS from its CDN script for styling and
inline <script> tags for any behavior. The page must be responsive and work on its own in a
browser. Reply with the raw HTML only: no Markdown, no code fences, no explanations.`

const reviseSystemPrompt = `You are an expert web developer editing an existing website. Apply the
requested changes to the current HTML document and return the complete updated document. Keep
everything the request does not mention unchanged. Use Tailwind CSS from its CDN script and inline
<script> tags. Reply with the raw HTML only: no Markdown, no code fences, no explanations.`

// Assistant messages appended around a generation.
const (
	enhancedNoteFormat = "I've enhanced your prompt to: %q"
	createdNote        = "Your website is ready! You can preview it and ask for changes at any time."
	revisedNote        = "I've made the changes to your website! You can now preview it."
)

const maxNameRunes = 50

// projectName derives a display name from the opening prompt.
func projectName(prompt string) string {
	prompt = strings.Join(strings.Fields(prompt), " ")
	if utf8.RuneCountInString(prompt) <= maxNameRunes {
		return prompt
	}
	r := []rune(prompt)
	return strings.TrimSpace(string(r[:maxNameRunes-3])) + "..."
}

func enhancedNote(prompt string) string {
	return fmt.Sprintf(enhancedNoteFormat, prompt)
}

// stripCodeFences removes a surrounding Markdown fence, with or without a
// language tag, from generated code.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
