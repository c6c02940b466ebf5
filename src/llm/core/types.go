package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ModelKind selects one of the three model slots configured per provider.
type ModelKind int

const (
	ModelPrimary ModelKind = iota
	ModelSecondary
	ModelLowload
)

func (k ModelKind) String() string {
	switch k {
	case ModelPrimary:
		return "primary"
	case ModelSecondary:
		return "secondary"
	case ModelLowload:
		return "lowload"
	}
	return "unknown"
}

// BlobData carries a binary attachment with its MIME type.
type BlobData struct {
	MIMEType string
	Data     []byte
}

// ContentPart is a closed union: exactly one of Text or Blob is populated.
// The persisted form uses {"text": ...} for text parts and
// {"inline_data": {"mime_type": ..., "data": <base64>}} for blob parts.
type ContentPart struct {
	Text string
	Blob *BlobData
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Text: text}
}

// BlobPart builds a binary content part.
func BlobPart(mimeType string, data []byte) ContentPart {
	return ContentPart{Blob: &BlobData{MIMEType: mimeType, Data: data}}
}

// IsText reports whether the part carries text.
func (p ContentPart) IsText() bool {
	return p.Blob == nil && p.Text != ""
}

// IsBlob reports whether the part carries binary data.
func (p ContentPart) IsBlob() bool {
	return p.Blob != nil
}

type contentPartJSON struct {
	Text       *string         `json:"text,omitempty"`
	InlineData *inlineDataJSON `json:"inline_data,omitempty"`
}

type inlineDataJSON struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// MarshalJSON emits the canonical wire form. Parts with no payload are
// rejected so that empty parts never reach persistence.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	switch {
	case p.Blob != nil:
		if p.Blob.MIMEType == "" {
			return nil, fmt.Errorf("blob part missing mime type")
		}
		return json.Marshal(contentPartJSON{
			InlineData: &inlineDataJSON{MIMEType: p.Blob.MIMEType, Data: p.Blob.Data},
		})
	case p.Text != "":
		text := p.Text
		return json.Marshal(contentPartJSON{Text: &text})
	default:
		return nil, fmt.Errorf("content part has no payload")
	}
}

// UnmarshalJSON decodes the canonical wire form, enforcing that exactly one
// variant is present. Corrupt base64 in inline_data surfaces as an error so
// callers can drop the single bad part instead of the whole record.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var raw contentPartJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Text != nil && raw.InlineData != nil:
		return fmt.Errorf("content part has both text and inline_data")
	case raw.InlineData != nil:
		if raw.InlineData.MIMEType == "" {
			return fmt.Errorf("inline_data missing mime_type")
		}
		p.Text = ""
		p.Blob = &BlobData{MIMEType: raw.InlineData.MIMEType, Data: raw.InlineData.Data}
		return nil
	case raw.Text != nil:
		if *raw.Text == "" {
			return fmt.Errorf("text part is empty")
		}
		p.Text = *raw.Text
		p.Blob = nil
		return nil
	default:
		return fmt.Errorf("content part has no payload")
	}
}

// Turn is one conversation entry. Turns are immutable once persisted; a turn
// with zero parts is invalid and must be dropped before it is written.
type Turn struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// UserTurn builds a user turn from content parts.
func UserTurn(parts ...ContentPart) Turn {
	return Turn{Role: RoleUser, Parts: parts}
}

// ModelTurn builds a model turn from response text.
func ModelTurn(text string) Turn {
	return Turn{Role: RoleModel, Parts: []ContentPart{TextPart(text)}}
}

// Valid reports whether the turn may be persisted.
func (t Turn) Valid() bool {
	if t.Role != RoleUser && t.Role != RoleModel {
		return false
	}
	return len(t.Parts) > 0
}

// JoinedText concatenates the turn's text parts, skipping blobs.
func (t Turn) JoinedText() string {
	var b strings.Builder
	for _, part := range t.Parts {
		if !part.IsText() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// SummaryMarker labels the long-term summary section inside the system
// instruction so the model can tell the digest apart from live conversation.
const SummaryMarker = "[Reference from long-term memory]"

// Request is the assembled input bundle for one generation call: the new
// user content, the rolling history (oldest first), and the long-term
// summary ("" when absent).
type Request struct {
	Parts   []ContentPart
	History []Turn
	Summary string
}

// Result is the normalized outcome of one generation call. Kind is KindNone
// on success; otherwise Text holds the fixed template message for the kind.
type Result struct {
	Model string
	Text  string
	Kind  ErrorKind
}

// IsError reports whether the result represents a failed generation.
func (r Result) IsError() bool {
	return r.Kind != KindNone
}

// Provider is the uniform contract over one vendor chat API. Generate
// returns ordinary failures inside the Result; the error return is reserved
// for unexpected internal faults, which the dispatcher converts to an
// internal-kind result. GenerateLowload is best-effort: ok=false on any
// failure with no further detail.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model string, req Request) (Result, error)
	GenerateLowload(ctx context.Context, prompt string) (string, bool)
	ModelName(kind ModelKind) string
}
