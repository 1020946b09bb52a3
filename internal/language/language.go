// Package language normalizes language identifiers to the ISO 639-2 codes
// Tesseract traineddata files are named after. Config accepts 2-letter codes
// and English spellings; the OCR stage needs the 3-letter form.
package language

import "strings"

type entry struct {
	iso2    string
	iso3    string
	alt3    string // bibliographic variant (e.g. "fre" for "fra")
	display string
	word    string
}

// The table covers languages with stock Tesseract traineddata. Script
// variants like chi_sim are not listed; callers treat an "und" result as a
// value to pass through untouched.
var table = []entry{
	{"en", "eng", "", "English", "english"},
	{"es", "spa", "", "Spanish", "spanish"},
	{"fr", "fra", "fre", "French", "french"},
	{"de", "deu", "ger", "German", "german"},
	{"it", "ita", "", "Italian", "italian"},
	{"pt", "por", "", "Portuguese", "portuguese"},
	{"nl", "nld", "dut", "Dutch", "dutch"},
	{"pl", "pol", "", "Polish", "polish"},
	{"ru", "rus", "", "Russian", "russian"},
	{"ar", "ara", "", "Arabic", "arabic"},
	{"hi", "hin", "", "Hindi", "hindi"},
	{"ja", "jpn", "", "Japanese", "japanese"},
	{"ko", "kor", "", "Korean", "korean"},
	{"vi", "vie", "", "Vietnamese", "vietnamese"},
	{"tl", "tgl", "", "Tagalog", "tagalog"},
	{"sv", "swe", "", "Swedish", "swedish"},
	{"da", "dan", "", "Danish", "danish"},
	{"no", "nor", "", "Norwegian", "norwegian"},
	{"fi", "fin", "", "Finnish", "finnish"},
	{"ht", "hat", "", "Haitian Creole", "haitian"},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(table)*4)
	for i := range table {
		e := &table[i]
		index[e.iso2] = e
		index[e.iso3] = e
		if e.alt3 != "" {
			index[e.alt3] = e
		}
		index[e.word] = e
	}
}

func lookup(code string) *entry {
	return index[strings.ToLower(strings.TrimSpace(code))]
}

// ToISO3 maps a recognized language identifier to its ISO 639-2/T code.
// Unrecognized 3-letter codes pass through so Tesseract script variants
// survive; anything else unrecognized maps to "und".
func ToISO3(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "und"
	}
	if e := lookup(code); e != nil {
		return e.iso3
	}
	if len(code) == 3 {
		return code
	}
	return "und"
}

// ToISO2 maps a recognized language identifier to its ISO 639-1 code.
// Unrecognized 2-letter codes pass through; anything else unrecognized
// returns the empty string.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.iso2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable name for status output. Unrecognized
// codes come back uppercased rather than hidden.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
