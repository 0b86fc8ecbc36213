package models

import "fmt"

// Roles accepted in a chat turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Chat modes. Auto and technical take the retrieval path.
const (
	ModeAuto      = "auto"
	ModeWellbeing = "wellbeing"
	ModeTechnical = "technical"
)

// Safety notes attached to responses the model never produced.
const (
	SafetyCrisisEscalation = "crisis_escalation_triggered"
	SafetyWellbeing        = "wellbeing_playbook"
	SafetyNoContext        = "no_context"
)

type ChatTurn struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatTurn `json:"messages" binding:"required,min=1,dive"`
	Mode     string     `json:"mode,omitempty"`
}

// Normalize fills the default mode and rejects unknown roles or modes.
func (r *ChatRequest) Normalize() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	switch r.Mode {
	case "":
		r.Mode = ModeAuto
	case ModeAuto, ModeWellbeing, ModeTechnical:
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	return nil
}

type SourceRef struct {
	Document string  `json:"document" bson:"document"`
	Section  *string `json:"section" bson:"section,omitempty"`
	Page     *int    `json:"page" bson:"page,omitempty"`
}

type ChatResponse struct {
	Reply       string      `json:"reply"`
	Citations   []SourceRef `json:"citations"`
	SafetyNotes *string     `json:"safety_notes"`
}

// NewPolicyResponse builds a reply that carries a safety note and no citations.
func NewPolicyResponse(reply, note string) *ChatResponse {
	return &ChatResponse{
		Reply:       reply,
		Citations:   []SourceRef{},
		SafetyNotes: &note,
	}
}

// Outcome names the pipeline branch that produced the response.
func (r *ChatResponse) Outcome() string {
	if r.SafetyNotes == nil {
		return "answered"
	}
	return *r.SafetyNotes
}
