package detectors

import "fmt"

// maxPromptChars keeps very long inputs inside provider context limits.
const maxPromptChars = 24000

const systemPrompt = `You are an expert forensic linguist who detects AI-generated writing.
Analyze the text supplied by the user and respond with ONLY a JSON object of the form:

{"ai_probability": <0-100>, "breakdown": {"ai_generated": <0-100>, "mixed": <0-100>, "human": <0-100>}, "confidence": "low" | "moderate" | "high"}

- ai_probability is the overall likelihood that the text was produced by an AI model.
- breakdown splits the text into the share that reads as fully AI-generated, AI-polished
  human writing (mixed), and purely human writing. The three numbers must add up to 100.
- confidence is how certain you are of this assessment.
Do not include any explanation outside the JSON object.`

func userPrompt(text string) string {
	text = cutUTF8(text, maxPromptChars)
	return fmt.Sprintf("Text to analyze:\n<<<\n%s\n>>>", text)
}
