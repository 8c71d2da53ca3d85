package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var libraryLevels = map[string]int{
	"error": discordgo.LogError,
	"warn":  discordgo.LogWarning,
	"info":  discordgo.LogInformational,
	"debug": discordgo.LogDebug,
}

// libraryLevel maps a zerolog level name onto discordgo's scale. Unknown
// names fall back to warnings.
func libraryLevel(name string) int {
	if lvl, ok := libraryLevels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return discordgo.LogWarning
}

// logLibrary forwards discordgo's own log lines to the global logger.
func logLibrary(msgL, _ int, format string, a ...interface{}) {
	var ev *zerolog.Event
	switch msgL {
	case discordgo.LogError:
		ev = log.Error()
	case discordgo.LogWarning:
		ev = log.Warn()
	case discordgo.LogInformational:
		ev = log.Info()
	default:
		ev = log.Debug()
	}
	ev.Str("component", "discordgo").Msgf(strings.TrimSpace(format), a...)
}
