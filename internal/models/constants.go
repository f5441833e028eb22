package models

const (
	// ErrorMarker prefixes every answer produced from a failed turn.
	ErrorMarker = "Error: "
	// NotFoundPhrase is what the model is instructed to say when the CV lacks the answer.
	NotFoundPhrase = "Information not found in CV"
	// MetadataSection is the chunk metadata key holding the CV section label.
	MetadataSection  = "section"
	ContextSeparator = "\n"
)

var (
	SystemPrompt = `You are a precise CV analysis assistant. Your task is to:
1. Only use information explicitly stated in the provided CV sections
2. Quote specific details when possible
3. If information is not found, clearly state '` + NotFoundPhrase + `'
4. Maintain chronological accuracy when discussing experience
5. Consider all provided sections before answering
6. Use relevant links of demos, where applicable, to emphasize skills`

	UserPromptTemplate = `Based on these CV sections:
%s

Question: %s`
)
