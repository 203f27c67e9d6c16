package chat

import (
	"fmt"
	"strings"

	"fraudechat/internal/models"
	"fraudechat/internal/persona"
	"fraudechat/internal/service/ai"
)

// BuildContext turns stored history into provider turns for the active persona.
// The history must end with the newest user message, which is placed last.
func BuildContext(reg *persona.Registry, active *persona.Persona, history []*models.Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(history)+2)
	turns = append(turns,
		ai.Turn{Role: ai.RoleUser, Content: active.Instructions},
		ai.Turn{Role: ai.RoleAssistant, Content: active.Acknowledgement},
	)
	if len(history) == 0 {
		return turns
	}

	newest := history[len(history)-1]
	for _, msg := range history[:len(history)-1] {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch models.ParseRole(string(msg.Role)) {
		case models.RoleUser:
			turns = append(turns, ai.Turn{Role: ai.RoleUser, Content: msg.Content})
		case models.RoleAssistant:
			content := msg.Content
			if prior := reg.LookupKey(msg.Mode); prior.Mode != active.Mode {
				content += "\n\n" + switchNote(prior, active)
			}
			turns = append(turns, ai.Turn{Role: ai.RoleAssistant, Content: content})
		}
	}
	return append(turns, ai.Turn{Role: ai.RoleUser, Content: newest.Content})
}

func switchNote(prior, active *persona.Persona) string {
	return fmt.Sprintf("[Context note: this earlier reply was given by %s. You are now %s; stay in character and do not contradict the earlier reply.]",
		prior.Name, active.Name)
}
