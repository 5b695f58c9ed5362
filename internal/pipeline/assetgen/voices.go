package assetgen

// Prebuilt narration voices. The pick is keyed by video ID so a retried
// pipeline lands on the same voice even before the pin is written.
var narrationVoices = []string{
	"Kore",
	"Puck",
	"Charon",
	"Fenrir",
	"Aoede",
	"Leda",
	"Orus",
	"Zephyr",
}

func pickVoice(videoID uint64) string {
	return narrationVoices[videoID%uint64(len(narrationVoices))]
}
