package command

import (
	"fmt"
	"strconv"
	"strings"
)

var numberUnits = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19,
}

var numberTens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// ParseNumber parses a spoken number from argument tokens, accepting either
// digit form ("23") or English words, including compounds like
// "twenty three", "twenty-three" and "one hundred and five".
func ParseNumber(tokens []string) (int, error) {
	if len(tokens) == 0 {
		return 0, fmt.Errorf("no number given")
	}

	// Digit form is a single token.
	if len(tokens) == 1 {
		if n, err := strconv.Atoi(tokens[0]); err == nil {
			return n, nil
		}
	}

	// Split hyphenated compounds so "twenty-three" parses like "twenty three".
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		for _, part := range strings.Split(strings.ToLower(tok), "-") {
			if part != "" {
				words = append(words, part)
			}
		}
	}

	total, current := 0, 0
	matched := false
	for _, word := range words {
		switch {
		case word == "and":
			continue
		case word == "hundred":
			if current == 0 {
				current = 1
			}
			current *= 100
			matched = true
		case word == "thousand":
			if current == 0 {
				current = 1
			}
			total += current * 1000
			current = 0
			matched = true
		default:
			if n, ok := numberUnits[word]; ok {
				current += n
				matched = true
				continue
			}
			if n, ok := numberTens[word]; ok {
				current += n
				matched = true
				continue
			}
			return 0, fmt.Errorf("unrecognized number word %q", word)
		}
	}
	if !matched {
		return 0, fmt.Errorf("no number found in %q", strings.Join(tokens, " "))
	}
	return total + current, nil
}
