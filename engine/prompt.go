package engine

// DefaultExtractionPrompt instructs Claude how to condense memories.
const DefaultExtractionPrompt = `You maintain long-term memory for a software repository.

You receive stored memories about the repository and the conversation that is
currently taking place. Write the memory context that should be added to the
system prompt of the assistant taking part in that conversation.

RULES:
- Include only facts from <memories> that help with the conversation
- Keep each fact short; prefer one line per fact
- Preserve identifiers exactly (issue numbers, file paths, names)
- Never invent facts that are not in <memories>
- Do not address the user; output the context only

If none of the memories are relevant, reply with exactly: NONE`
