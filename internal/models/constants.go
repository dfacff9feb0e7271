package models

const (
	DefaultTableName = "evidence"
	DefaultTopK      = 3

	SourceHeaderFormat = "--- SOURCE: %s ---"
	BlockDivider       = "-----------------------"
	BlockSeparator     = "\n\n"

	RefusalSentence     = "I cannot find evidence to answer this."
	GenerationErrorText = "System error during analysis."

	DefaultQuestion = "What is the timeline of events involving the red vehicle, and what forensic evidence links it to the scene?"
	Greeting        = "Detective online. I have reviewed the case files. What would you like to know?"

	ConnectionErrorText = "⚠️ Connection error. Unable to access case files."
)

var (
	SystemPrompt = `You are a strict Cold Case Detective system.
Your job is to answer the user's question based ONLY on the provided evidence context.
You must cite your sources explicitly using the format [filename] (e.g., [witness_statement.txt]).
Do not hallucinate. If the answer is not in the context, say "` + RefusalSentence + `"`

	PromptTemplate = `%s

EVIDENCE CONTEXT:
%s

QUESTION:
%s

ANSWER:`
)
