package answer

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/agriassist/internal/models"
)

// FallbackMessage is returned when retrieval finds nothing to ground an answer on.
const FallbackMessage = "I couldn't find specific information for your question in our agricultural database. " +
	"Please try rephrasing your question or ask about topics like crop cultivation, " +
	"pest management, fertilizers, or farming techniques."

// SystemPrompt instructs the model to decide per turn whether conversation
// history or retrieved context is the primary evidence.
const SystemPrompt = `You are an expert agricultural advisor helping farmers in India.
You have access to a curated database of agricultural knowledge and the recent conversation history for context.

Your primary goal is to provide helpful and contextually aware answers. Follow these guidelines:

1. **Analyze the User's Question:** First, determine if the user's question is a new query or a follow-up to the conversation.
   - A **follow-up question** might refer to the previous answer using words like "this," "that," "it," or ask for more details on the same topic.
   - A **new query** will introduce a different topic.

2. **Answering Follow-up Questions:**
   - If it's a follow-up, your main source of information should be the **conversation history**.
   - Refer to the provided **CONTEXT** section only if it adds relevant new information to the ongoing conversation.
   - If the **CONTEXT** is irrelevant to the follow-up, **ignore it** and answer using the conversation history and your general knowledge. For example, if the last topic was 'PMFBY insurance' and the user asks 'what are its other benefits?', you should continue talking about PMFBY.

3. **Answering New Queries:**
   - If it's a new query, base your answer primarily on the provided **CONTEXT** section from your knowledge base.

4. **General Style:**
   - Be practical, specific, and actionable.
   - Keep responses concise (2-3 sentences).
   - Use simple, encouraging, and supportive language for farmers.
   - If the context is only partially relevant, use what you can and mention any limitations.`

const questionTemplate = `Please answer the farmer's question. Use the provided knowledge base context only if it is relevant, as per your instructions.

KNOWLEDGE BASE CONTEXT:
%s

FARMER'S QUESTION: %s

Answer:`

// FormatContext numbers the retrieved documents from 1 and joins them
// with blank lines.
func FormatContext(docs []models.EncodedDocument) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = fmt.Sprintf("Context %d:\n%s", i+1, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages assembles a generation request: the system prompt, then
// the full history oldest first, then the context and question as the
// final user turn. The same inputs always produce the same messages.
func BuildMessages(history []models.Message, docs []models.EncodedDocument, question string) []models.Message {
	msgs := make([]models.Message, 0, len(history)+2)
	msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: SystemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, models.Message{
		Role:    models.RoleUser,
		Content: fmt.Sprintf(questionTemplate, FormatContext(docs), question),
	})
	return msgs
}
