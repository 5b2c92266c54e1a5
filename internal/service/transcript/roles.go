package transcript

import (
	"strings"

	"ai-care-assistant-service/internal/models"
)

// DefaultUserAliases are the participant id prefixes that identify the
// local user in a room.
var DefaultUserAliases = []string{"patient", "user"}

// RoleResolver derives a message role from a transcript segment.
type RoleResolver struct {
	aliases []string
}

// NewRoleResolver creates a resolver matching the given aliases. An empty
// list selects DefaultUserAliases.
func NewRoleResolver(aliases []string) RoleResolver {
	if len(aliases) == 0 {
		aliases = DefaultUserAliases
	}
	return RoleResolver{aliases: append([]string(nil), aliases...)}
}

// Resolve returns the segment's explicit role when it carries a valid one,
// otherwise RoleUser if the participant id starts with a user alias
// (case-sensitive) and RoleAssistant for everyone else.
func (r RoleResolver) Resolve(seg models.TranscriptSegment) models.Role {
	if seg.Role.Valid() {
		return seg.Role
	}
	for _, alias := range r.aliases {
		if strings.HasPrefix(seg.ParticipantID, alias) {
			return models.RoleUser
		}
	}
	return models.RoleAssistant
}
