package extraction

import "strings"

// ExpertSystemPrompt instructs the model to answer with the six RoB-2 domains
// as a single JSON object.
const ExpertSystemPrompt = `You are a professional reviewer. You are particularly good at learning evaluation criteria, and closely following it to assess the risk of bias of Randomized Controlled Trials (RCTs).

IMPORTANT:
- You must output ONLY a JSON object.
- Make all judgments based on facts. If information is missing, select "Probably no".

JSON Structure:
{
  "D1": {"judgment": "Definitely yes/Probably yes/Probably no/Definitely no", "support": "Reason"},
  "D2": {"judgment": "...", "support": "..."},
  "D3": {"judgment": "...", "support": "..."},
  "D4": {"judgment": "...", "support": "..."},
  "D5": {"judgment": "...", "support": "..."},
  "Overall": {"judgment": "...", "support": "..."}
}`

// BuildPrompt appends the article text to the instruction prompt.
func BuildPrompt(system, article string) string {
	if strings.TrimSpace(system) == "" {
		system = ExpertSystemPrompt
	}
	var sb strings.Builder
	sb.Grow(len(system) + len(article) + 32)
	sb.WriteString(system)
	sb.WriteString("\n\nArticle Content:\n")
	sb.WriteString(article)
	return sb.String()
}
