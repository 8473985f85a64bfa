package chat

import "strings"

// SystemPrompt steers the model toward infrastructure-as-code answers with
// fenced, language-tagged code blocks.
const SystemPrompt = `You are an expert in infrastructure as code, specializing in Terraform, AWS, and cloud architecture.
Provide accurate, secure, and well-documented solutions following best practices.
When showing code examples:
- Always wrap code in triple backticks with the appropriate language specifier (` + "```terraform, ```json" + `, etc.).
- For Terraform code use ` + "```terraform or ```hcl" + `
- Include clear comments in your code examples
- Focus on security, maintainability, and following cloud best practices
- Be concise but thorough in your explanations`

// GenerateOptions are the sampling options sent with every chat request.
func GenerateOptions() map[string]any {
	return map[string]any{
		"temperature": 0.1,
		"top_p":       0.9,
		"top_k":       40,
	}
}

// BuildPrompt formats a single-turn prompt for message.
func BuildPrompt(message string) string {
	return BuildContextPrompt("", message)
}

// BuildContextPrompt formats a single-turn prompt with a project context
// block between the system prompt and the user message.
func BuildContextPrompt(projectContext, message string) string {
	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(projectContext)
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\n\nAssistant:")
	return b.String()
}
