package settings

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

var ErrUnknownLanguage = errors.New("unknown language")

const DefaultLanguage = "de"

type table = map[string]any

var translations = map[string]table{
	"de": {
		"header": table{
			"title":    "Interaktiver Audio-Equalizer",
			"subtitle": "Professionelle Audioverarbeitung mit Echtzeit-Visualisierung",
		},
		"controls": table{
			"chooseFiles": "Audiodateien wählen",
			"volume":      "Lautstärke",
			"backward":    "Zurück",
			"playPause":   "Play/Pause",
			"stop":        "Stopp",
			"forward":     "Weiter",
			"shuffle":     "Zufallswiedergabe",
			"loop":        "Wiederholen",
			"deleteAll":   "Alle Dateien löschen",
		},
		"visualizer": table{"title": "Audio-Visualisierer"},
		"equalizer": table{
			"title": "15-Band-Equalizer",
			"reset": "Zurücksetzen",
		},
		"playlist": table{
			"title":  "Wiedergabeliste",
			"tracks": "Titel",
		},
		"tools": table{
			"title":    "Weitere Audiotools entdecken",
			"subtitle": "Professionelle Audiowerkzeuge für alle Ihre Bedürfnisse",
			"cta":      "Alle Tools entdecken",
			"modernPlayer": table{
				"title":    "Moderner Musikplayer",
				"desc":     "Eleganter Audioplayer mit erweiterten Funktionen und modernem Design",
				"feature1": "Playlist-Verwaltung",
				"feature2": "Visualisierer",
			},
			"playlistGen": table{
				"title":    "Playlist-Generator",
				"desc":     "Intelligenter Generator für personalisierte Musik-Playlists",
				"feature1": "Automatische Erstellung",
				"feature2": "Genre-Filter",
			},
			"ultimatePlayer": table{
				"title":    "Ultimativer Musikplayer",
				"desc":     "Professioneller Player mit erweiterten Audioverarbeitungs-Funktionen",
				"feature1": "Profi-Funktionen",
				"feature2": "Erweiterter Equalizer",
			},
			"converter": table{
				"title":    "Audiokonverter",
				"desc":     "Konvertieren Sie Audiodateien zwischen verschiedenen Formaten",
				"feature1": "Multi-Format",
				"feature2": "Stapelverarbeitung",
			},
		},
		"faq": table{
			"title":    "Häufig gestellte Fragen (FAQ)",
			"subtitle": "Alles, was Sie über den Audio-Equalizer wissen müssen",
		},
	},
	"en": {
		"header": table{
			"title":    "Interactive Audio Equalizer",
			"subtitle": "Professional Audio Processing with Real-time Visualization",
		},
		"controls": table{
			"chooseFiles": "Choose Audio Files",
			"volume":      "Volume",
			"backward":    "Previous",
			"playPause":   "Play/Pause",
			"stop":        "Stop",
			"forward":     "Next",
			"shuffle":     "Shuffle",
			"loop":        "Loop",
			"deleteAll":   "Delete All Files",
		},
		"visualizer": table{"title": "Audio Visualizer"},
		"equalizer": table{
			"title": "15-Band Equalizer",
			"reset": "Reset",
		},
		"playlist": table{
			"title":  "Playlist",
			"tracks": "Tracks",
		},
		"tools": table{
			"title":    "Discover More Audio Tools",
			"subtitle": "Professional audio tools for all your needs",
			"cta":      "Discover All Tools",
			"modernPlayer": table{
				"title":    "Modern Music Player",
				"desc":     "Elegant audio player with advanced features and modern design",
				"feature1": "Playlist Management",
				"feature2": "Visualizer",
			},
			"playlistGen": table{
				"title":    "Playlist Generator",
				"desc":     "Intelligent generator for personalized music playlists",
				"feature1": "Auto-Creation",
				"feature2": "Genre Filter",
			},
			"ultimatePlayer": table{
				"title":    "Ultimate Music Player",
				"desc":     "Professional player with advanced audio processing features",
				"feature1": "Pro Features",
				"feature2": "Advanced EQ",
			},
			"converter": table{
				"title":    "Audio Converter",
				"desc":     "Convert audio files between different formats",
				"feature1": "Multi-Format",
				"feature2": "Batch Processing",
			},
		},
		"faq": table{
			"title":    "Frequently Asked Questions (FAQ)",
			"subtitle": "Everything you need to know about the Audio Equalizer",
		},
	},
}

// Languages are the supported UI languages, default first.
var Languages = []string{"de", "en"}

var matcher = language.NewMatcher([]language.Tag{language.German, language.English})

// KnownLanguage reports whether lang has a translation table.
func KnownLanguage(lang string) bool {
	_, ok := translations[lang]
	return ok
}

// T looks up a dotted key such as "controls.volume". Missing keys and
// unknown languages return the key itself.
func T(lang, key string) string {
	var node any = translations[lang]
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(table)
		if !ok {
			return key
		}
		if node, ok = m[part]; !ok {
			return key
		}
	}
	s, ok := node.(string)
	if !ok || s == "" {
		return key
	}
	return s
}

// Translations returns the whole table for lang, or nil.
func Translations(lang string) map[string]any {
	return translations[lang]
}

// Negotiate picks a supported language for an Accept-Language header,
// falling back to the default.
func Negotiate(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	return Languages[idx]
}
