package memory

// NoExtractSentinel is what the extraction prompt tells the model to
// output when the evicted turns hold nothing worth keeping.
const NoExtractSentinel = "nothing to extract"

const extractPrompt = `From the conversation log below, extract the facts, key points, settings and user preferences that are likely to matter as context for future conversation. Write them as concise bullet points. If there is nothing worth extracting, output exactly "nothing to extract".

--- Conversation log ---
%s
--- End of log ---

Extraction:`

const mergePrompt = `Merge the existing summary and the new information below into one concise summary. Remove duplicates and group related items. Keep the bullet point format.

--- Existing summary ---
%s
--- End ---

--- New information ---
%s
--- End ---

Merged summary:`

const summarizePrompt = `Review the long-term memory summary below. Clean out stale, contradictory and redundant entries, and rewrite it as a shorter, consistent, up-to-date summary. Keep the bullet point format.

--- Summary to clean ---
%s
--- End ---

Cleaned summary:`
