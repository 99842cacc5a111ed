package conversation

import (
	"strings"

	"courier/internal/models"
)

// GroupPrefix marks a routing token as a group conversation.
const GroupPrefix = "group:"

// Resolve classifies a raw routing token. It is pure and total: every input
// yields a valid identifier, and an empty token yields an empty target which
// the session manager treats as "no session".
func Resolve(token string) models.ConversationIdentifier {
	if strings.HasPrefix(token, GroupPrefix) {
		return models.ConversationIdentifier{
			Kind:   models.KindGroup,
			Target: strings.TrimPrefix(token, GroupPrefix),
		}
	}
	return models.ConversationIdentifier{
		Kind:   models.KindPrivate,
		Target: token,
	}
}
