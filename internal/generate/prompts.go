package generate

import "fmt"

// systemPrompt instructs the model to answer only from the supplied context
// and to state clearly when the context falls short.
const systemPrompt = `You are an assistant that answers questions using only the provided context.

Rules:
1. Base every statement on the context below. Do not use outside knowledge.
2. Cite the source documents you rely on.
3. If the context does not contain enough information to answer, say so explicitly and summarize what the context does cover.
4. Be concise and factual. Format the answer in readable markdown.`

const userPromptTemplate = `Context Information:
%s

Question: %s

Answer the question using only the context above. If the context is insufficient, acknowledge this and state what information is available.`

func userPrompt(contextText, question string) string {
	return fmt.Sprintf(userPromptTemplate, contextText, question)
}
