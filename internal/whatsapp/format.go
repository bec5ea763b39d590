package whatsapp

import (
	"fmt"
	"strings"

	"legalease/internal/model"
)

const (
	maxKeyPoints = 5
	maxWarnings  = 3
)

const welcomeMessage = `🏛️ *Welcome to Legal EASE!*

I'm your legal document assistant. I can help you understand complex legal documents in plain English.

📄 *How to use:*
• Send me a PDF document
• I'll analyze it and explain the key points
• Ask me questions about specific clauses
• Get warnings about concerning terms

🚀 *Try it now:* Send me any legal document (rental agreement, contract, terms of service, etc.)

💡 *Example questions:*
• "What is the monthly rent?"
• "Can I have pets?"
• "What are the termination conditions?"
• "Are there any concerning clauses?"

Let's make legal documents easy to understand! 📚✨`

const helpMessage = `🆘 *Legal EASE Help*

📄 *Document Analysis:*
• Send any PDF legal document
• Get an instant analysis
• Understand key terms & conditions
• Identify potential concerns

💬 *Ask Questions:*
• "What is the rent amount?"
• "Can I terminate early?"
• "What are my obligations?"
• "Are there penalty fees?"

🚀 *Supported Documents:*
• Rental agreements
• Employment contracts
• Terms of service
• Loan agreements
• Insurance policies
• And more!

📱 *Commands:*
• Send "help" - Show this message
• Send "new" - Start fresh analysis
• Send PDF - Analyze document
• Ask questions - Get answers

Ready to analyze your document? Send it now! 📤`

const sessionClearedMessage = "🔄 Session cleared! Send me a new document to analyze."

// formatAnalysis renders an analysis for a chat window. Long lists are cut.
func formatAnalysis(res model.AnalysisResult, name string) string {
	summary := res.Summary
	if strings.TrimSpace(summary) == "" {
		summary = "Analysis completed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📄 *Document Analysis: %s*\n\n📋 *SUMMARY*\n%s\n\n✅ *KEY POINTS*", name, summary)
	for i, p := range firstN(res.KeyPoints, maxKeyPoints) {
		fmt.Fprintf(&b, "\n%d. %s", i+1, p)
	}
	if len(res.Warnings) > 0 {
		b.WriteString("\n\n⚠️ *IMPORTANT WARNINGS*")
		for i, w := range firstN(res.Warnings, maxWarnings) {
			fmt.Fprintf(&b, "\n%d. %s", i+1, w)
		}
	}
	b.WriteString(`

💬 *Ask me questions about this document!*
Examples:
• "What are the payment terms?"
• "What happens if I terminate early?"
• "Are there any hidden fees?"

Type your question and I'll find the answer in your document! 🤖`)
	return b.String()
}

// formatAnswer renders an answer with its source and a confidence label.
func formatAnswer(question string, ans model.AnswerResult) string {
	answer := ans.Answer
	if strings.TrimSpace(answer) == "" {
		answer = "I could not find an answer to that question."
	}
	conf := ans.Confidence
	if conf == "" {
		conf = model.ConfidenceMedium
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❓ *Your Question:*\n%s\n\n🤖 *Legal EASE Answer:*\n%s", question, answer)
	if ans.SourceSection != nil && strings.TrimSpace(*ans.SourceSection) != "" {
		fmt.Fprintf(&b, "\n\n📄 *Source Reference:*\n%s", *ans.SourceSection)
	}
	fmt.Fprintf(&b, "\n\n%s *Confidence: %s*\n\n💡 *Ask another question or send a new document to analyze!*",
		confidenceEmoji(conf), titleCase(string(conf)))
	return b.String()
}

// formatError wraps a problem description with recovery tips.
func formatError(msg, maxSize string) string {
	return fmt.Sprintf(`❌ *Oops! Something went wrong*

%s

🔄 *Please try again:*
• Make sure your PDF is readable
• File size should be under %s
• Send one document at a time

Need help? Just ask! 💬`, msg, maxSize)
}

func confidenceEmoji(c model.Confidence) string {
	switch c {
	case model.ConfidenceHigh:
		return "🎯"
	case model.ConfidenceLow:
		return "🤔"
	default:
		return "📊"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
