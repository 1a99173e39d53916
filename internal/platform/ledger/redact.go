package ledger

import (
	"regexp"
	"strings"
)

// RedactionToken replaces any metadata or diff value flagged as PHI-like.
// Nested objects matched by key are collapsed to this single token so their
// structure does not leak either.
const RedactionToken = "[REDACTED:PHI]"

// sensitiveKeys is the case-insensitive key-name deny list, normalized by
// stripping underscores, hyphens, and spaces. Bare "name" is intentionally
// absent: only patient-qualified names are PHI in this system's payloads.
var sensitiveKeys = map[string]bool{
	"patientname":  true,
	"patient":      true,
	"dob":          true,
	"dateofbirth":  true,
	"birthdate":    true,
	"ssn":          true,
	"mrn":          true,
	"npi":          true,
	"address":      true,
	"phone":        true,
	"phonenumber":  true,
	"email":        true,
	"rawtext":      true,
	"documenttext": true,
	"filename":     true,
	"filesize":     true,
	"payload":      true,
}

// diffPathFragments flag a diff field when its dotted path contains any of
// these substrings, regardless of the leaf value's shape.
var diffPathFragments = []string{
	"patient", "dob", "ssn", "mrn", "npi",
	"address", "phone", "email", "raw", "document", "file",
}

var (
	ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	mrnPattern = regexp.MustCompile(`(?i)\bMRN[:#]?\s*\d{5,}`)
	// dobPattern matches whole values shaped like a date within a plausible
	// birth-year range. Anchored so RFC3339 timestamps in operational
	// payloads (digest windows, schedules) are not mistaken for PHI.
	dobPattern = regexp.MustCompile(`^(19\d{2}|20[01]\d)[-/](0[1-9]|1[0-2])[-/](0[1-9]|[12]\d|3[01])$`)
)

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	k = strings.ReplaceAll(k, "-", "")
	return strings.ReplaceAll(k, " ", "")
}

func sensitiveKey(k string) bool {
	return sensitiveKeys[normalizeKey(k)]
}

func sensitiveString(s string) bool {
	return ssnPattern.MatchString(s) || mrnPattern.MatchString(s) || dobPattern.MatchString(s)
}

// RedactMetadata walks a metadata payload and replaces PHI-like values with
// RedactionToken. The input is not mutated. The returned flag reports whether
// anything was replaced.
func RedactMetadata(v map[string]any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	out, flagged := redactMap(v, "", false)
	return out, flagged
}

// RedactDiff is the diff variant of RedactMetadata: in addition to key-name
// and content checks, a changed field is redacted whenever its dotted path
// contains one of the known PHI path fragments.
func RedactDiff(v map[string]any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	out, flagged := redactMap(v, "", true)
	return out, flagged
}

func redactMap(m map[string]any, path string, pathCheck bool) (map[string]any, bool) {
	out := make(map[string]any, len(m))
	flagged := false
	for k, val := range m {
		childPath := k
		if path != "" {
			childPath = path + "." + k
		}
		if sensitiveKey(k) || (pathCheck && pathSensitive(childPath)) {
			out[k] = RedactionToken
			flagged = true
			continue
		}
		rv, f := redactValue(val, childPath, pathCheck)
		out[k] = rv
		flagged = flagged || f
	}
	return out, flagged
}

func redactValue(v any, path string, pathCheck bool) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t, path, pathCheck)
	case []any:
		out := make([]any, len(t))
		flagged := false
		for i, item := range t {
			rv, f := redactValue(item, path, pathCheck)
			out[i] = rv
			flagged = flagged || f
		}
		return out, flagged
	case string:
		if sensitiveString(t) {
			return RedactionToken, true
		}
		return t, false
	default:
		// nil, bool, numbers: nothing to scan.
		return v, false
	}
}

func pathSensitive(path string) bool {
	lower := strings.ToLower(path)
	for _, frag := range diffPathFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
