// Package passwordx evaluates master-password candidates: per-rule
// checks, a 0-100 strength score, tier classification, and validation.
//
// The deny-list and sequential checks use substring containment, so a
// long password embedding any banned 3-character fragment is rejected.
// This is intentionally strict.
package passwordx

import (
	"fmt"
	"strings"
)

// MinLength is the minimum master-password length.
const MinLength = 12

var commonPasswords = []string{
	"password", "password1", "password123", "123456", "12345678", "123456789",
	"qwerty", "abc123", "letmein", "welcome", "monkey", "dragon", "master",
	"login", "admin", "passw0rd", "iloveyou", "sunshine", "princess", "football",
	"shadow", "superman", "michael", "jennifer", "hunter", "trustno1", "ranger",
	"buster", "thomas", "robert", "hockey", "batman", "test", "pass", "killer",
	"george", "charlie", "andrew", "michelle", "love", "secret", "angel",
}

var sequentialPatterns = []string{
	"123", "234", "345", "456", "567", "678", "789", "890",
	"abc", "bcd", "cde", "def", "efg", "fgh", "ghi", "hij",
	"qwe", "wer", "ert", "rty", "tyu", "yui", "uio", "iop",
	"asd", "sdf", "dfg", "ghj", "hjk", "jkl",
	"zxc", "xcv", "cvb", "vbn", "bnm",
}

const specialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

// Rules is the per-rule breakdown for a candidate password. The first
// five are hard requirements; NotCommon and NotSequential are rendered
// as distinct warnings in UIs but still fail Validate.
type Rules struct {
	MinLength     bool `json:"minLength"`
	HasUppercase  bool `json:"hasUppercase"`
	HasLowercase  bool `json:"hasLowercase"`
	HasNumber     bool `json:"hasNumber"`
	HasSpecial    bool `json:"hasSpecial"`
	NotCommon     bool `json:"notCommon"`
	NotSequential bool `json:"notSequential"`
}

// Tier classifies a score into one of five strength levels.
type Tier struct {
	Label string `json:"label"`
	Level int    `json:"level"`
}

// Result is the outcome of Validate.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
	Rules   Rules    `json:"rules"`
}

// CheckRules evaluates every individual requirement against password.
func CheckRules(password string) Rules {
	lower := strings.ToLower(password)

	return Rules{
		MinLength:     len(password) >= MinLength,
		HasUppercase:  strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }),
		HasLowercase:  strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }),
		HasNumber:     strings.ContainsAny(password, "0123456789"),
		HasSpecial:    strings.ContainsAny(password, specialChars),
		NotCommon:     !containsAny(lower, commonPasswords),
		NotSequential: !containsAny(lower, sequentialPatterns),
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Score computes a strength score in [0, 100]: length bonus (capped),
// per-class bonuses, over-minimum bonus, and penalties for deny-list
// hits, sequential runs, and 3+ character repeats.
func Score(password string) int {
	if password == "" {
		return 0
	}

	rules := CheckRules(password)
	score := 0

	score += min(30, len(password)*2)

	if rules.HasUppercase {
		score += 10
	}
	if rules.HasLowercase {
		score += 10
	}
	if rules.HasNumber {
		score += 10
	}
	if rules.HasSpecial {
		score += 10
	}

	if len(password) > MinLength {
		score += min(20, (len(password)-MinLength)*2)
	}

	if !rules.NotCommon {
		score -= 30
	}
	if !rules.NotSequential {
		score -= 15
	}

	score -= 5 * repeatRuns(password)

	return max(0, min(100, score))
}

// repeatRuns counts maximal runs of 3+ identical consecutive characters.
func repeatRuns(password string) int {
	runs := 0
	runes := []rune(password)
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= 3 {
			runs++
		}
		i = j
	}
	return runs
}

// Classify maps a score to its tier. Thresholds: 30/50/70/90.
func Classify(score int) Tier {
	switch {
	case score < 30:
		return Tier{Label: "Very Weak", Level: 0}
	case score < 50:
		return Tier{Label: "Weak", Level: 1}
	case score < 70:
		return Tier{Label: "Fair", Level: 2}
	case score < 90:
		return Tier{Label: "Strong", Level: 3}
	default:
		return Tier{Label: "Very Strong", Level: 4}
	}
}

// Validate checks password against every rule. IsValid is true only when
// no rule is violated: deny-list and sequential violations fail
// validation, though the Rules breakdown lets callers present them
// differently from the hard requirements.
func Validate(password string) Result {
	rules := CheckRules(password)
	var errs []string

	if !rules.MinLength {
		errs = append(errs, fmt.Sprintf("At least %d characters required", MinLength))
	}
	if !rules.HasUppercase {
		errs = append(errs, "At least one uppercase letter required")
	}
	if !rules.HasLowercase {
		errs = append(errs, "At least one lowercase letter required")
	}
	if !rules.HasNumber {
		errs = append(errs, "At least one number required")
	}
	if !rules.HasSpecial {
		errs = append(errs, "At least one special character required (!@#$%^&*...)")
	}
	if !rules.NotCommon {
		errs = append(errs, "Password contains a common word or pattern")
	}
	if !rules.NotSequential {
		errs = append(errs, "Password contains sequential characters (abc, 123, qwerty...)")
	}

	return Result{IsValid: len(errs) == 0, Errors: errs, Rules: rules}
}
