package viewer

import "fmt"

// Mode decides how a tag's images become pages.
type Mode int

const (
	Manga    Mode = iota // right-to-left spreads, two images per page
	Single               // one image per page
	Vertical             // one image per page, stacked to fill the viewport
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Vertical:
		return "vertical"
	}
	return "manga"
}

// ParseMode accepts the names printed by String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "manga":
		return Manga, nil
	case "single":
		return Single, nil
	case "vertical":
		return Vertical, nil
	}
	return Manga, fmt.Errorf("mode %q not recognized", s)
}
