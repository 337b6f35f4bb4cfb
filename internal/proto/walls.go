package proto

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Walls стороны ячейки, закрытые стеной. N соответствует +X, E соответствует +Y.
type Walls uint8

const (
	WallsNone Walls = 0
	WallsN    Walls = 1 << 0
	WallsE    Walls = 1 << 1
	WallsS    Walls = 1 << 2
	WallsW    Walls = 1 << 3

	WallsAll = WallsN | WallsE | WallsS | WallsW
)

var wallLetters = [4]struct {
	bit    Walls
	letter byte
}{{WallsN, 'N'}, {WallsE, 'E'}, {WallsS, 'S'}, {WallsW, 'W'}}

// ParseWalls разбирает строку вида "NE" или "NESW"; пустая строка означает отсутствие стен
func ParseWalls(s string) (Walls, error) {
	var w Walls
	s = strings.TrimSpace(s)
	if s == "-" {
		return WallsNone, nil
	}
	for _, r := range strings.ToUpper(s) {
		found := false
		for _, wl := range wallLetters {
			if byte(r) == wl.letter {
				w |= wl.bit
				found = true
			}
		}
		if !found {
			return WallsNone, fmt.Errorf("неизвестная сторона %q в %q", r, s)
		}
	}
	return w, nil
}

func (w Walls) String() string {
	var b strings.Builder
	for _, wl := range wallLetters {
		if w&wl.bit != 0 {
			b.WriteByte(wl.letter)
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// UnmarshalYAML читает стены из строки
func (w *Walls) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseWalls(value.Value)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
