package payload

// Precedence tables for derived fields. Each entry is a path of nested
// object keys, and the first path that resolves to a non-empty string
// wins. Interactive messages nest IDs in objects ("channel.id"), slash
// commands use flat fields ("channel_id"), and Events API callbacks use
// the inner event, or the event's item for reaction-type events.
var (
	textPaths = [][]string{
		{"text"},          // Slash commands.
		{"event", "text"}, // Events API.
	}

	channelIDPaths = [][]string{
		{"channel", "id"},
		{"channel_id"},
		{"event", "channel"},
		{"event", "item", "channel"},
	}

	teamIDPaths = [][]string{
		{"team", "id"},
		{"team_id"},
		{"event", "team"},
		{"event", "item", "team"},
	}

	userIDPaths = [][]string{
		{"user", "id"},
		{"user_id"},
		{"event", "user"},
		{"event", "item", "user"},
	}

	botIDPaths = [][]string{
		{"bot_id"},
		{"event", "bot_id"},
	}
)

// first returns the value of the first path in the given
// precedence table that resolves to a non-empty string.
func (p *Payload) first(paths [][]string) string {
	for _, path := range paths {
		if s := lookup(p.Fields, path); s != "" {
			return s
		}
	}
	return ""
}

func lookup(m map[string]any, path []string) string {
	for i, key := range path {
		v, found := m[key]
		if !found {
			return ""
		}
		if i == len(path)-1 {
			s, _ := v.(string)
			return s
		}
		if m, _ = v.(map[string]any); m == nil {
			return ""
		}
	}
	return ""
}
