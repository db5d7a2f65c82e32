package interview

import (
	"encoding/json"
	"fmt"
)

// Difficulty is the ordered question difficulty level.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("difficulty(%d)", int(d))
	}
}

// ParseDifficulty converts the wire form back to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch s {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	default:
		return Easy, fmt.Errorf("unknown difficulty: %q", s)
	}
}

// Lower steps the difficulty down one level, flooring at easy.
func (d Difficulty) Lower() Difficulty {
	if d > Easy {
		return d - 1
	}
	return Easy
}

// Raise steps the difficulty up one level, capping at hard.
func (d Difficulty) Raise() Difficulty {
	if d < Hard {
		return d + 1
	}
	return Hard
}

func (d Difficulty) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseDifficulty(s)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}
