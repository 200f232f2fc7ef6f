package evaluation

import (
	"regexp"
	"strings"
	"unicode"
)

// Channel is the grading channel a class belongs to.
type Channel string

const (
	ChannelRegular Channel = "regular"
	ChannelTrial   Channel = "trial"
)

var Channels = []Channel{ChannelRegular, ChannelTrial}

// ParseChannel maps a query value to a Channel. An empty value means ChannelRegular.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChannelRegular:
		return ChannelRegular, nil
	case ChannelTrial:
		return ChannelTrial, nil
	}
	return "", ErrInvalidChannel
}

// Template name markers, matched case-insensitively on word boundaries.
const (
	InformalSchooling = "INFORMAL SCHOOLING"
	FormalSchooling   = "FORMAL SCHOOLING"
	TrialClass        = "TRIAL CLASS"
)

var (
	prefixMarkers = map[string]string{
		"ng": InformalSchooling,
		"n5": InformalSchooling,
		"pk": InformalSchooling,
		"ps": InformalSchooling,
		"tp": InformalSchooling,
		"tc": InformalSchooling,

		"kg": FormalSchooling,
		"k1": FormalSchooling,
		"ga": FormalSchooling,
		"gs": FormalSchooling,
		"g2": FormalSchooling,
		"gb": FormalSchooling,
		"g3": FormalSchooling,
		"gd": FormalSchooling,

		"f1": TrialClass,
	}

	classCodeRegex     = regexp.MustCompile(`^(?:[a-z]+|trial)_\d{6}_\d{4}(AM|PM)_[A-Za-z]+$`)
	freeClassCodeRegex = regexp.MustCompile(`^f\d+_free_\d{6}_\d{4}(AM|PM)_[A-Za-z.]+$`)
	trialPrefixRegex   = regexp.MustCompile(`^f\d+$`)
)

// ClassCodePrefix returns the lower-cased part of code before the first "_",
// or the whole lower-cased code when there is none.
func ClassCodePrefix(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexByte(code, '_'); i >= 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}

// TemplateMarker returns the template name marker the class code prefix maps to.
func TemplateMarker(code string) (string, bool) {
	marker, ok := prefixMarkers[ClassCodePrefix(code)]
	return marker, ok
}

// GetTemplateIDForClassCode picks the template matching the class code prefix.
// ok is false for unknown prefixes or when no template carries the marker.
func GetTemplateIDForClassCode(code string, templates []Template) (id string, ok bool) {
	marker, ok := TemplateMarker(code)
	if !ok {
		return "", false
	}
	for _, tmpl := range templates {
		if nameHasMarker(tmpl.Name, marker) {
			return tmpl.ID, true
		}
	}
	return "", false
}

// nameHasMarker reports whether marker appears in name as whole words,
// so that "FORMAL SCHOOLING" does not match "INFORMAL SCHOOLING".
func nameHasMarker(name, marker string) bool {
	name = strings.ToUpper(name)
	for offset := 0; offset < len(name); {
		i := strings.Index(name[offset:], marker)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(marker)
		if !isWordByteAt(name, start-1) && !isWordByteAt(name, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordByteAt(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	r := rune(s[i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ValidateClassCode checks the traditional ("ps_070424_1000AM_Apple")
// and free lesson ("f1_free_070424_1000AM_J.Doe") class code formats.
func ValidateClassCode(code string) bool {
	return classCodeRegex.MatchString(code) || freeClassCodeRegex.MatchString(code)
}

// ChannelForClassCode returns ChannelTrial for "fN" and "trial" prefixes.
func ChannelForClassCode(code string) Channel {
	prefix := ClassCodePrefix(code)
	if prefix == "trial" || trialPrefixRegex.MatchString(prefix) {
		return ChannelTrial
	}
	return ChannelRegular
}
