package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	minAge = 1
	maxAge = 129

	minPhoneDigits = 7
	maxPhoneDigits = 10

	minKebele = 1
	maxKebele = 17
)

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// reNextLabel finds the label of the next field when a reply puts several
// fields on one line.
var reNextLabel = regexp.MustCompile(`(?i)[,;]?\s*(?:\b(?:name|age|sex|gender|tel(?:ephone)?|phone|mobile|kebele|date|address)\b|ስም|ዕድሜ|ጾታ|ፆታ|ስልክ|ቀበሌ|አድራሻ|ቀን)\s*[:\-]`)

// cutAtNextLabel drops everything from the first following field label onward.
func cutAtNextLabel(s string) string {
	if loc := reNextLabel.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

func normalizeName(s string) (string, bool) {
	s = collapseSpace(cutAtNextLabel(s))
	s = strings.TrimRight(s, ",;")
	return s, s != ""
}

var reAgeValue = regexp.MustCompile(`(?i)^(\d{1,3})\s*(?:years?(?:\s+old)?|yrs?|y\.?\s?o\.?)?\.?$`)

func normalizeAge(s string) (string, bool) {
	m := reAgeValue.FindStringSubmatch(collapseSpace(s))
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < minAge || n > maxAge {
		return "", false
	}
	return strconv.Itoa(n), true
}

func sexNormalizer(glyphs glyphTable) Normalizer {
	return func(s string) (string, bool) {
		if v, ok := glyphs.lookup(s); ok {
			return v, true
		}
		tok := strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		}))
		switch tok {
		case "m", "male":
			return "M", true
		case "f", "female":
			return "F", true
		}
		return "", false
	}
}

func normalizeTelephone(s string) (string, bool) {
	d := digitsOnly(s)
	if len(d) == 12 && strings.HasPrefix(d, "251") {
		d = "0" + d[3:]
	}
	if len(d) < minPhoneDigits || len(d) > maxPhoneDigits {
		return "", false
	}
	return d, true
}

var reBahirDar = regexp.MustCompile(`(?i)\b(?:bahir\s*dar|b\s*/\s*dar|b\s*/\s*dr|bdr)\b\.?`)

func normalizeAddress(s string) (string, bool) {
	s = collapseSpace(cutAtNextLabel(s))
	s = reBahirDar.ReplaceAllString(s, "Bahir Dar")
	s = strings.TrimRight(s, ",;")
	return s, s != ""
}

func normalizeKebele(s string) (string, bool) {
	d := digitsOnly(s)
	if d == "" || len(d) > 2 {
		return "", false
	}
	n, err := strconv.Atoi(d)
	if err != nil || n < minKebele || n > maxKebele {
		return "", false
	}
	return fmt.Sprintf("%02d", n), true
}

func dateNormalizer(cal Calendar) Normalizer {
	if cal == CalendarEthiopian {
		return normalizeEthiopianDate
	}
	return normalizeGregorianDate
}
