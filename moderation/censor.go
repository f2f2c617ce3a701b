// Package moderation masks forbidden words in outbound chat lines.
package moderation

import (
	"chat-relay/errors"
	"sort"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Censor matches a dictionary against a folded form of the line, so
// "B.4.d.g.€r" is caught by "badger", and masks the original runes.
type Censor struct {
	machine     *goahocorasick.Machine
	replacement rune
}

// folded is the searchable form of a line: lower case, leet speak mapped
// back to letters, punctuation/space/symbols dropped. positions[i] is the
// index in the original runes of runes[i].
type folded struct {
	runes     []rune
	positions []int
}

// NewCensor fails with ErrEmptyWords when no word survives folding
// (e.g. a dictionary of punctuation only).
func NewCensor(words []string, replacement rune) (*Censor, error) {
	patterns := lo.FilterMap(words, func(word string, _ int) ([]rune, bool) {
		f := fold([]rune(word))
		return f.runes, len(f.runes) > 0
	})
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}
	patterns = lo.UniqBy(patterns, func(p []rune) string { return string(p) })
	sort.Slice(patterns, func(i, j int) bool { return string(patterns[i]) < string(patterns[j]) })

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: machine, replacement: replacement}, nil
}

func (c *Censor) Censor(line string) string {
	original := []rune(line)
	f := fold(original)
	if len(f.runes) == 0 {
		return line
	}
	terms := c.machine.MultiPatternSearch(f.runes, false)
	if len(terms) == 0 {
		return line
	}
	for _, term := range terms {
		end := term.Pos + len(term.Word)
		if term.Pos < 0 || end > len(f.positions) {
			continue
		}
		for i := f.positions[term.Pos]; i <= f.positions[end-1]; i++ {
			original[i] = c.replacement
		}
	}
	return string(original)
}

func fold(input []rune) folded {
	f := folded{runes: make([]rune, 0, len(input)), positions: make([]int, 0, len(input))}
	for i, r := range input {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.positions = append(f.positions, i)
	}
	return f
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	}
	return r
}
