// Package prompt composes the system instruction sent to the generation
// backend for each study mode and response style.
package prompt

import "fmt"

// StudyMode selects what kind of response the tutor produces.
type StudyMode int

const (
	ModeChat StudyMode = iota
	ModeQuiz
	ModeFlashcards
	ModeConceptMap
)

var modeNames = map[StudyMode]string{
	ModeChat:       "chat",
	ModeQuiz:       "quiz",
	ModeFlashcards: "flashcards",
	ModeConceptMap: "conceptmap",
}

func (m StudyMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("StudyMode(%d)", int(m))
}

// ParseStudyMode maps a wire name to a StudyMode.
func ParseStudyMode(name string) (StudyMode, error) {
	for mode, n := range modeNames {
		if n == name {
			return mode, nil
		}
	}
	return ModeChat, fmt.Errorf("unknown study mode %q", name)
}

// ResponseStyle controls how verbose the tutor is.
type ResponseStyle int

const (
	StyleTerse ResponseStyle = iota
	StyleBalanced
	StyleExhaustive
)

var styleNames = map[ResponseStyle]string{
	StyleTerse:      "terse",
	StyleBalanced:   "balanced",
	StyleExhaustive: "exhaustive",
}

func (s ResponseStyle) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ResponseStyle(%d)", int(s))
}

// ParseResponseStyle maps a wire name to a ResponseStyle.
func ParseResponseStyle(name string) (ResponseStyle, error) {
	for style, n := range styleNames {
		if n == name {
			return style, nil
		}
	}
	return StyleBalanced, fmt.Errorf("unknown response style %q", name)
}
