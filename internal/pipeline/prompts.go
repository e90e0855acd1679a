package pipeline

import (
	"fmt"
	"strings"
)

// Prompt texts for the four inference stages. Each call pairs a fixed system
// prompt with a per-item user prompt. Keep updates centralized here so the
// wording is easy to tweak without hunting through call sites. The /no_think
// directive keeps Qwen-family models out of extended reasoning; other models
// ignore it.

// personaPrompt is the synthesis system prompt. It fixes the assistant's
// voice, the citation format, and the honesty rules for the final answer.
const personaPrompt = `/no_think
You are Winnow, an expert research assistant.

STYLE RULES:
- No lists, bullets, or headers unless explicitly requested
- Natural, warm, and concise tone
- Answer based STRICTLY on the provided evidence

CITATION FORMAT:
- Always cite sources: [chunk_id : key evidence]
- Example: [report.md_s3 : "the deadline is March 15"]

HONESTY:
- If evidence is insufficient, say so clearly
- Never invent or extrapolate beyond the provided context
- Distinguish between what's stated vs what's implied
`

const scanSystemPrompt = `/no_think
Summarize this text chunk in ONE short sentence (max 15 words).
Focus on: main topic, key facts, or notable information.
Output ONLY the summary, nothing else.
`

func scanUserPrompt(content string) string {
	return "CHUNK CONTENT:\n" + content
}

const selectorSystemPrompt = `/no_think
You are a precision filter. Your task is to select ONLY the chunks that likely contain the answer.

INSTRUCTIONS:
1. Read each chunk summary carefully
2. Select ONLY chunks whose summary suggests they contain relevant information
3. Be selective - fewer, more relevant chunks is better than many vague ones

OUTPUT FORMAT (JSON list of chunk ids, nothing else):
["chunk_id_1", "chunk_id_2"]

If no chunk is relevant, output: []
`

func selectorUserPrompt(question, digest string) string {
	return fmt.Sprintf("USER QUESTION: \"%s\"\n\nAVAILABLE CHUNKS AND THEIR SUMMARIES:\n%s", question, digest)
}

const extractorSystemPrompt = `/no_think
You are a precise information extractor.

TASK:
1. Find ALL passages that answer or relate to the question
2. Extract them verbatim or with minimal paraphrase
3. If nothing relevant exists, respond with exactly: NOTHING

Output the relevant information directly, no preamble.
`

func extractorUserPrompt(question, chunkID, content string) string {
	return fmt.Sprintf("USER QUESTION: \"%s\"\n\nSOURCE: %s\nCONTENT:\n%s", question, chunkID, content)
}

func synthesizeUserPrompt(question, evidence string) string {
	var b strings.Builder
	b.WriteString("/no_think\nBased on the extracted evidence below, answer the user's question.\n\n")
	b.WriteString("USER QUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nEXTRACTED EVIDENCE:\n")
	b.WriteString(evidence)
	b.WriteString("\n\nREQUIREMENTS:\n")
	b.WriteString("1. Answer naturally, no bullet points or headers\n")
	b.WriteString("2. Cite sources using [chunk_id : snippet] format\n")
	b.WriteString("3. If evidence is contradictory, note the discrepancy\n")
	b.WriteString("4. If evidence is insufficient, be honest about limitations\n")
	return b.String()
}
