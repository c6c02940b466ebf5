package core

import "fmt"

// ErrorKind classifies a failed generation into the taxonomy shared by all
// providers. Vendor-specific detail never crosses this boundary except as a
// short truncated suffix on the template message.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindRateLimit
	KindInvalidArgument
	KindBlockedPrompt
	KindBlockedResponse
	KindUnavailable
	KindInternal
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindBlockedPrompt:
		return "blocked_prompt"
	case KindBlockedResponse:
		return "blocked_response"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Fixed user-facing templates, one per kind. Handlers send these verbatim;
// the raw vendor diagnostics stay in the server logs.
const (
	msgRateLimit       = "API limit exceeded. Wait a while before trying again."
	msgInvalidArgument = "Request error. Something in the submitted data was not accepted."
	msgBlockedPrompt   = "Prompt blocked. The input was judged inappropriate."
	msgBlockedResponse = "Response blocked. The generated content was judged inappropriate."
	msgUnavailable     = "Connection error. Communication with the API failed."
	msgInternal        = "Internal error. A problem occurred during processing."
	msgUnknown         = "Unknown error. Failed to generate a response."
)

const detailLimit = 150

// Message returns the fixed template for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindRateLimit:
		return msgRateLimit
	case KindInvalidArgument:
		return msgInvalidArgument
	case KindBlockedPrompt:
		return msgBlockedPrompt
	case KindBlockedResponse:
		return msgBlockedResponse
	case KindUnavailable:
		return msgUnavailable
	case KindInternal:
		return msgInternal
	}
	return msgUnknown
}

// ErrorResult builds an error result carrying the kind's template message,
// with the vendor detail reduced to a truncated suffix.
func ErrorResult(model string, kind ErrorKind, detail string) Result {
	text := kind.Message()
	if detail != "" {
		text = fmt.Sprintf("%s (detail: %s)", text, TruncateDetail(detail))
	}
	return Result{Model: model, Text: text, Kind: kind}
}

// TruncateDetail caps a vendor diagnostic string for safe display.
func TruncateDetail(detail string) string {
	runes := []rune(detail)
	if len(runes) <= detailLimit {
		return detail
	}
	return string(runes[:detailLimit]) + "..."
}
