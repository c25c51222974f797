package engine

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/kbukum/voicekit/voice"
)

// ParseEspeakVoices parses the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  de              --/M      German             gmw/de
func ParseEspeakVoices(out string) []voice.VoiceHandle {
	var voices []voice.VoiceHandle
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		lang := fields[1]
		voices = append(voices, voice.VoiceHandle{
			ID:     lang,
			Name:   strings.ReplaceAll(fields[3], "_", " "),
			Locale: voice.NormalizeLocale(lang),
		})
	}
	return voices
}

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// ParseSayVoices parses the listing printed by `say -v ?`:
//
//	Anna                de_DE    # Hallo, ich heiße Anna.
//	Eddy (German (Germany)) de_DE    # Hallo! Ich heiße Eddy.
func ParseSayVoices(out string) []voice.VoiceHandle {
	var voices []voice.VoiceHandle
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		m := sayVoiceLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, voice.VoiceHandle{
			ID:     name,
			Name:   name,
			Locale: voice.NormalizeLocale(m[2]),
		})
	}
	return voices
}
