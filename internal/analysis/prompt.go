package analysis

import (
	"fmt"
	"unicode/utf8"
)

const analysisPrompt = `
You are a legal document analysis AI. Analyze the following legal document and provide a structured response.

Document: %s
Content: %s

Please provide your analysis in the following JSON format:
{
    "summary": "A clear, plain English summary of the document's main purpose and key terms (2-3 sentences)",
    "key_points": [
        "First important clause or term explained in simple language",
        "Second important clause or term explained in simple language",
        "Third important clause or term explained in simple language",
        "Fourth important clause or term explained in simple language",
        "Fifth important clause or term explained in simple language"
    ],
    "warnings": [
        "Any potentially unfavorable or concerning clauses",
        "Unusual terms that might disadvantage the user",
        "Important deadlines or obligations to note"
    ]
}

Focus on:
1. Making complex legal language understandable
2. Identifying the most important terms and obligations
3. Highlighting potential risks or unfavorable conditions
4. Explaining what the user is agreeing to in plain English

Respond only with the JSON format above.
`

const questionPrompt = `
You are a legal document Q&A assistant. Answer the user's question based on the provided document.

Document Content: %s

User Question: %s

Please provide your response in the following JSON format:
{
    "answer": "Clear, direct answer to the user's question based on the document",
    "source_section": "The specific section or clause that contains this information (if identifiable)",
    "confidence": "high/medium/low based on how clearly the document addresses this question"
}

Guidelines:
1. Only answer based on information actually present in the document
2. If the information is not in the document, clearly state that
3. Explain legal terms in plain English
4. Be specific and cite relevant sections when possible
5. If the answer is unclear or ambiguous, indicate that

Respond only with the JSON format above.
`

func buildAnalysisPrompt(text, filename string) string {
	if filename == "" {
		filename = "document"
	}
	return fmt.Sprintf(analysisPrompt, filename, text)
}

func buildQuestionPrompt(text, question string) string {
	return fmt.Sprintf(questionPrompt, text, question)
}

// truncate cuts s to at most n characters and reports whether it did.
func truncate(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
