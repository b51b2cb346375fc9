// Package payload normalizes Slack's inbound request bodies into a single
// model: [Events API] callbacks (including URL verification challenges),
// [slash commands], [interaction payloads] (interactive messages and block
// actions), and OAuth callbacks. Derived accessors such as [Payload.TeamID]
// resolve the same semantic value regardless of the source shape.
//
// [Events API]: https://docs.slack.dev/apis/events-api
// [slash commands]: https://docs.slack.dev/interactivity/implementing-slash-commands
// [interaction payloads]: https://docs.slack.dev/interactivity/handling-user-interaction
package payload

import (
	"encoding/json"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Payload is a parsed Slack request body, with derived accessors.
type Payload struct {
	// Fields is the effective decoded object. Interaction payloads are
	// already unwrapped from their "payload" form field.
	Fields map[string]any
}

// New parses the given request body, and merges in the given query
// parameters (e.g. OAuth callbacks), for keys that the body doesn't
// already contain. The query may be nil.
func New(body []byte, query url.Values) *Payload {
	m := Parse(body)
	for k, vs := range query {
		if _, found := m[k]; !found && len(vs) > 0 {
			m[k] = vs[0]
		}
	}
	return &Payload{Fields: m}
}

// Parse decodes a raw request body, which may be a JSON object or URL-encoded
// form data. If the decoded object contains a "payload" field (as interaction
// payloads do), its JSON value replaces the object. Bodies that can't be
// decoded result in an empty map - this function never fails.
func Parse(body []byte) map[string]any {
	m := map[string]any{}
	if err := json.Unmarshal(body, &m); err != nil {
		m = parseForm(body)
	}
	if m == nil { // JSON "null".
		m = map[string]any{}
	}

	// https://docs.slack.dev/interactivity/handling-user-interaction#payloads
	switch p := m["payload"].(type) {
	case string:
		inner := map[string]any{}
		if err := json.Unmarshal([]byte(p), &inner); err == nil && inner != nil {
			m = inner
		}
	case map[string]any:
		m = p
	}

	return m
}

// parseForm decodes URL-encoded form data into a flat map of strings.
// Only the first value of each key is kept. Malformed pairs are skipped,
// but the valid ones around them are still decoded.
func parseForm(body []byte) map[string]any {
	m := map[string]any{}
	vs, _ := url.ParseQuery(string(body))

	for k, v := range vs {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	return m
}

// Text returns the message text: the top-level "text" field of slash
// commands, or the "event.text" field of Events API callbacks.
func (p *Payload) Text() string {
	return p.first(textPaths)
}

// ChannelID returns the ID of the channel where the payload originated.
func (p *Payload) ChannelID() string {
	return p.first(channelIDPaths)
}

// TeamID returns the ID of the Slack workspace where the payload originated.
func (p *Payload) TeamID() string {
	return p.first(teamIDPaths)
}

// UserID returns the ID of the user who triggered the payload.
func (p *Payload) UserID() string {
	return p.first(userIDPaths)
}

// BotID returns the ID of the bot that sent the message, if applicable.
func (p *Payload) BotID() string {
	return p.first(botIDPaths)
}

// Action returns an interaction payload's selected
// action (the first element of "actions"), or nil.
func (p *Payload) Action() map[string]any {
	actions, ok := p.Fields["actions"].([]any)
	if !ok || len(actions) == 0 {
		return nil
	}
	a, _ := actions[0].(map[string]any)
	return a
}

// Selection returns the selected option of a menu action, or nil.
func (p *Payload) Selection() map[string]any {
	opts, ok := p.Action()["selected_options"].([]any)
	if !ok || len(opts) == 0 {
		return nil
	}
	s, _ := opts[0].(map[string]any)
	return s
}

// Event returns the inner event of an Events API callback, or nil.
func (p *Payload) Event() map[string]any {
	e, _ := p.Fields["event"].(map[string]any)
	return e
}

// Type returns the top-level payload type (e.g. "event_callback", "block_actions").
func (p *Payload) Type() string { return p.str("type") }

// Token returns the deprecated verification token that Slack includes in payloads.
func (p *Payload) Token() string { return p.str("token") }

// Code returns the temporary authorization code of an OAuth callback.
func (p *Payload) Code() string { return p.str("code") }

// State returns the opaque state parameter of an OAuth flow.
func (p *Payload) State() string { return p.str("state") }

// Challenge returns the value of an Events API URL verification challenge.
func (p *Payload) Challenge() string { return p.str("challenge") }

// Command returns the name of a slash command (e.g. "/devkit").
func (p *Payload) Command() string { return p.str("command") }

// CallbackID returns the callback ID of an interactive message.
func (p *Payload) CallbackID() string { return p.str("callback_id") }

// ResponseURL returns the URL for responding to slash commands and interactions.
func (p *Payload) ResponseURL() string { return p.str("response_url") }

// TriggerWord returns the word that triggered an outgoing webhook.
func (p *Payload) TriggerWord() string { return p.str("trigger_word") }

// Match tests the payload's text against a case-insensitive, multi-line
// regular expression. It returns the leftmost match and its submatches,
// or nil if there's no text, no match, or the pattern is invalid.
func (p *Payload) Match(pattern string) []string {
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		return nil
	}
	return p.MatchRegexp(re)
}

// MatchRegexp is like [Payload.Match], but with a precompiled regular expression.
func (p *Payload) MatchRegexp(re *regexp.Regexp) []string {
	text := p.Text()
	if text == "" {
		return nil
	}
	return re.FindStringSubmatch(text)
}

// Is reports whether the given label is one of the payload's
// [Payload.EventTypes], or matches the payload's text as a pattern.
func (p *Payload) Is(label string) bool {
	return slices.Contains(p.EventTypes(), label) || p.Match(label) != nil
}

// IsSubCommand reports whether the payload's text starts
// with the given sub-command name, case-insensitively.
func (p *Payload) IsSubCommand(name string) bool {
	_, ok := p.SubCommand(name)
	return ok
}

// SubCommand returns the arguments after the given sub-command name,
// without leading whitespace, if the text starts with that name.
func (p *Payload) SubCommand(name string) (string, bool) {
	re := regexp.MustCompile("(?i)^" + regexp.QuoteMeta(name))
	text := p.Text()
	loc := re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return strings.TrimLeft(text[loc[1]:], " \t\n"), true
}

// EventTypes returns labels describing the kind of the payload, in this fixed
// order: the top-level type, "bot_message", "event" and the event type,
// "challenge" and its value, "slash_command" and the command, "webhook" and
// the trigger word, "interactive_message" and the callback ID, "message_select"
// and the selected value, "message_button" and the action value. Only labels
// that apply are included, and duplicates are removed (the first occurrence wins).
func (p *Payload) EventTypes() []string {
	var ts []string
	add := func(labels ...string) {
		for _, l := range labels {
			if l != "" {
				ts = append(ts, l)
			}
		}
	}

	add(p.Type())

	if p.BotID() != "" {
		add("bot_message")
	}

	if e := p.Event(); e != nil {
		t, _ := e["type"].(string)
		add("event", t)
	}

	if c := p.Challenge(); c != "" {
		add("challenge", c)
	}

	if c := p.Command(); c != "" {
		add("slash_command", c)
	}

	if w := p.TriggerWord(); w != "" {
		add("webhook", w)
	}

	if id := p.CallbackID(); id != "" {
		add("interactive_message", id)
	}

	if s := p.Selection(); s != nil {
		v, _ := s["value"].(string)
		add("message_select", v)
	}

	if a := p.Action(); a != nil {
		v, _ := a["value"].(string)
		add("message_button", v)
	}

	return dedup(ts)
}

func dedup(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (p *Payload) str(key string) string {
	s, _ := p.Fields[key].(string)
	return s
}
