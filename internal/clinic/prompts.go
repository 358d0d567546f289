package clinic

import "strings"

// expandContext substitutes the shared names into a bot's character text.
func expandContext(context string, settings Settings) string {
	r := strings.NewReplacer(
		"{{user}}", settings.UserName,
		"{{char}}", settings.BotName,
		"<USER>", settings.UserName,
		"<BOT>", settings.BotName,
	)
	return strings.TrimSpace(r.Replace(context))
}

// BuildMessages renders the shared conversation for one bot.
func BuildMessages(bot Bot, settings Settings, turns []Turn) []Message {
	var msgs []Message
	if system := expandContext(bot.Context, settings); system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	for _, t := range turns {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Text})
	}
	return msgs
}
