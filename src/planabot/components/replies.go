package components

// User-facing reply templates. Kept in one place so the bot speaks with a
// consistent voice across handlers.
const (
	replyJustMention = "…You called?"
	replyNoContent   = "There was nothing I could read in that message. Send text, an image or a plain text file."

	replyRateLimited = "Please wait %d seconds before sending another request."

	replyFileTooLarge    = ":warning: A file over %dMB was skipped."
	replyTooManyImages   = ":warning: Too many images. Only the first %d are used."
	replyUnsupportedFile = ":warning: An unsupported file type was skipped."
	replyAttachmentRead  = ":warning: An attachment could not be downloaded and was skipped."

	replyHistoryFailed = "History error. I could not read back the channel messages."

	replySwitched     = "Provider switched to %s."
	replySwitchFailed = "Could not switch to %s. Check that its credentials are configured."

	replyMemoryCleared     = "Short-term cache and long-term memory for this channel have been cleared."
	replyMemoryClearFailed = "Long-term memory error. The stored data could not be cleared."
	replyNoDeepMemory      = "There is no long-term memory for this channel yet."
	replySummaryFailed     = "Long-term memory error. The summary could not be reorganized."
	replySummaryDone       = "Long-term memory reorganized. Current summary:"

	replyTimerFormat = "Invalid timer format. Give the minutes and a note, e.g. `!timer 10 stand-up meeting`."
	replyTimerRange  = "Timers run from %d to %d minutes."
	replyTimerFailed = "Internal error occurred. The timer could not be scheduled."
	replyTimerSet    = "Timer set for %d minutes (%s will notify you).\nNote: 「%s」"

	replyPollInvalid = "Invalid poll format. A question and 2 to 10 options are required, e.g. `!poll \"Lunch?\" ramen curry sushi`."
	replyPollFailed  = "Internal error occurred. The poll could not be created."

	replySearchUsage         = "Tell me what to look for. Example: `!%s latest stable Go release`"
	replySearchNotConfigured = "Search is not configured (missing API key)."
	replySearchNoQueries     = "I could not come up with search queries for that. Try rephrasing."
	replySearchNoResults     = "The search returned no results."
	replySearchNoContent     = "I found results but could not extract readable content from any of them."
	replySearchAnswerFailed  = "I could not compose an answer from the search results."
	replySearchFailed        = "Internal error occurred. The search could not be completed."

	replyInternal = "Internal error occurred. Please try again later."
)

const helpText = "**Commands** (mention me or DM me)\n" +
	"`!gemini` / `!mistral` switch the active provider\n" +
	"`!src <query>` quick web search, `!dsrc <query>` deep web search\n" +
	"`!his <question>` answer using the recent channel history\n" +
	"`!timer <minutes> <note>` set a reminder (1 to 1440 minutes)\n" +
	"`!poll \"question\" opt1 opt2 ...` start a reaction poll (2 to 10 options)\n" +
	"`!csum` reorganize my long-term memory for this channel\n" +
	"`!cclear` erase my memory for this channel\n" +
	"Anything else is treated as a question."
