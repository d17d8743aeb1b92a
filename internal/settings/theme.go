package settings

import "slices"

const DefaultTheme = "dark"

// Theme is a set of CSS custom properties plus the page background.
type Theme struct {
	Name       string            `json:"name"`
	Vars       map[string]string `json:"vars"`
	Background string            `json:"background"`
}

var themes = map[string]Theme{
	"dark": {
		Name: "dark",
		Vars: map[string]string{
			"--primary-bg":        "#091428",
			"--card-bg":           "#142640",
			"--text-primary":      "#f9f2d5",
			"--text-secondary":    "#7A8DA0",
			"--glass-bg":          "rgba(1, 79, 153, 0.08)",
			"--glass-border":      "rgba(1, 79, 153, 0.2)",
			"--panel-highlight":   "rgba(201, 152, 77, 0.05)",
			"--dark-shadow-color": "rgba(9, 20, 40, 0.6)",
			"--dark-progress-bg":  "rgba(122, 141, 160, 0.2)",
			"--dark-btn":          "#0E1C32",
			"--dark-btn-hover":    "#142640",
		},
		Background: "radial-gradient(1200px 600px at 80% -20%, #0E1C32 0%, transparent 60%), #091428",
	},
	"light": {
		Name: "light",
		Vars: map[string]string{
			"--primary-bg":         "#F5F4D6",
			"--card-bg":            "#ffffff",
			"--text-primary":       "#003971",
			"--text-secondary":     "#014f99",
			"--glass-bg":           "rgba(255, 255, 255, 0.88)",
			"--glass-border":       "rgba(1, 79, 153, 0.18)",
			"--panel-highlight":    "rgba(201, 152, 77, 0.08)",
			"--dark-shadow-color":  "rgba(0, 57, 113, 0.15)",
			"--dark-progress-bg":   "rgba(1, 79, 153, 0.12)",
			"--dark-body-gradient": "linear-gradient(135deg, #F5F4D6 0%, #f9f2d5 100%)",
			"--dark-btn":           "#014f99",
			"--dark-btn-hover":     "#003971",
		},
		Background: "linear-gradient(135deg, #F5F4D6 0%, #f9f2d5 100%)",
	},
}

// LookupTheme returns the named theme. Unknown names get the dark theme.
func LookupTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[DefaultTheme]
}

// ThemeNames lists the known themes, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
