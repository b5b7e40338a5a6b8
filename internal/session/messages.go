package session

import (
	"fmt"
	"strings"

	"github.com/seajon16/sassbot/internal/soundboard"
)

// Discord rejects messages longer than this.
const messageLengthLimit = 2000

const (
	messageNotInVoice           = "You are not in a voice channel."
	messageNoVoiceConnection    = "I'm not in a voice channel."
	messageAlreadyInChannel     = "I'm already in this channel."
	messageNotPlaying           = "I'm not playing anything."
	messageNotPaused            = "I'm not paused."
	messageCommandInFlight      = "I'm already trying to process a VC command."
	messageLookupInFlight       = "I'm already looking something up for this server; try again in a moment."
	messageLeaveRace            = "You people need to make up your minds; do you want me to play something or not? :rolling_eyes:"
	messageInactivityDisconnect = "Disconnected from voice due to inactivity."
	messageExternalFailure      = "Something went wrong on my end; give it another shot in a bit."
	messageUnexpectedFailure    = "Something broke and it's probably not your fault. Try again?"
	messageRickroll             = "No."
	messageRefreshed            = "Fine, I'll stick around a while longer."
	messageRequestRecorded      = "Request made."
	messageRequestLogFull       = "The request ledger is stuffed; pester the owner to empty it."
	messageSoundsReloaded       = "Sound library reloaded."

	// MessageShutdown is broadcast to every active guild right before the
	// process exits.
	MessageShutdown = "I'm being turned off; bye nerds."
)

func fuzzyPlayNote(token, name string) string {
	return fmt.Sprintf("`%s` isn't a valid sound, so I'll play `%s` instead.", token, name)
}

func randomPlayedReply(name string) string {
	return fmt.Sprintf("You just heard `%s`.", name)
}

func unknownSoundReply(token string) string {
	return fmt.Sprintf("`%s` isn't a valid category or sound name; try `sb` with no arguments to see what I've got.", token)
}

func nowPlayingReply(trackDescription string) string {
	return "Now playing " + trackDescription
}

func categoriesReply(idx *soundboard.Index) string {
	var b strings.Builder
	b.WriteString("Pick a category or name a sound directly:\n")
	for _, cat := range idx.Categories() {
		sounds, _ := idx.Sounds(cat)
		fmt.Fprintf(&b, "**%s** (%d)\n", cat, len(sounds))
	}
	b.WriteString("Or try `all`, `new`, or `random`.")
	return b.String()
}

// Sound listings put one sound per line so splitMessage always has a
// newline to break on before the platform length limit.
func categoryReply(idx *soundboard.Index, category string) string {
	var b strings.Builder
	sounds, _ := idx.Sounds(category)
	fmt.Fprintf(&b, "Sounds in **%s**:", category)
	for _, sound := range sounds {
		b.WriteString("\n`" + sound + "`")
	}
	return b.String()
}

func allSoundsReply(idx *soundboard.Index) string {
	var b strings.Builder
	b.WriteString("Everything I've got:")
	for _, cat := range idx.Categories() {
		fmt.Fprintf(&b, "\n**%s**:", cat)
		sounds, _ := idx.Sounds(cat)
		for _, sound := range sounds {
			b.WriteString("\n`" + sound + "`")
		}
	}
	return b.String()
}

func recentSoundsReply(idx *soundboard.Index) string {
	recent := idx.Recent()
	if len(recent) == 0 {
		return "Nothing new around here."
	}
	return "Most recent additions, newest first:\n`" + strings.Join(recent, "`, `") + "`"
}

// splitMessage breaks msg into chunks that fit the platform length limit,
// splitting only on newlines. A single line longer than the limit is sent
// as its own oversized chunk and left to the transport to reject.
func splitMessage(msg string, limit int) []string {
	if len(msg) <= limit {
		return []string{msg}
	}
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.Split(msg, "\n") {
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
