package scan

import (
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Patterns matched against decoded accesschk output lines.
var (
	// A permission row: optional indent then "RW " (accesschk prints the
	// effective-rights column first).
	rwPrefixRE = regexp.MustCompile(`(?i)^\s*rw\s+`)

	// Any whole-word token that implies write access. ":w" / "w:" cover the
	// compact column formats, FILE_WRITE_DATA the verbose ACE dump.
	writeRE = regexp.MustCompile(`(?i)(?:^|\s)(rw|w|write|write_data|file_write_data|file_write|:w|w:|writedata)\b`)

	// Drive-letter or UNC path. Takes the rest of the line from the match
	// start: directory names may contain spaces, so there is no useful
	// right-hand boundary.
	pathExtractRE = regexp.MustCompile(`(?:[A-Za-z]:\\|\\\\[^\\]+\\)[^\r\n]*`)

	asciiAlnumRE = regexp.MustCompile(`[A-Za-z0-9]`)
)

// IsWriteLine reports whether the line carries a write-access token.
func IsWriteLine(s string) bool {
	return writeRE.MatchString(s)
}

// HasRWPrefix reports whether the line looks like a permission row rather
// than a path header.
func HasRWPrefix(s string) bool {
	return rwPrefixRE.MatchString(s)
}

// HasASCIIAlnum reports whether the line contains at least one ASCII letter
// or digit. Lines that don't are treated as stream garbage by the
// suppression rollback.
func HasASCIIAlnum(s string) bool {
	return asciiAlnumRE.MatchString(s)
}

// ExtractFirstPath returns the first Windows drive-letter or UNC path found
// in s, trimmed of surrounding whitespace and trailing quotes, or "" when
// the line carries no path.
func ExtractFirstPath(s string) string {
	m := pathExtractRE.FindString(s)
	if m == "" {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(m), `"`)
}

// Known noisy accesschk diagnostics, matched against a lower-cased,
// diacritic-stripped rendering of the line. The French variants show up when
// the tool runs on a localized Windows; the mangled spellings (missing
// accents) show up when the codepage guess was wrong.
var suppressedFoldedSnippets = []string{
	"error getting security",
	"la syntaxe du nom de fichier",
	"repertoire ou de volume est incorrecte",
	"has a non-canonical dacl",
	"explicit deny after explicit allow",
	"explicit allow after inherited allow",
	"access denied",
	"path not found",
	"fichier introuvable",
	"acces refuse",
	"the system cannot find",
	"le systeme ne peut pas localiser",
	"error:",
	"erreur:",
}

// Fast substring pre-check; catches the overwhelming majority of suppressed
// lines without paying for Unicode normalization.
var suppressedFastKeywords = []string{
	"syntaxe", "répertoire", "repertoire", "incorrecte",
	"canonical", "explicit", "denied", "security",
	"introuvable", "refusé", "refuse", "cannot find", "error:", "erreur:",
}

var diacriticStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

func foldForErrorMatching(s string) string {
	folded, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// IsSuppressedError reports whether the line is a known low-value accesschk
// diagnostic that should be filtered from the visible log.
func IsSuppressedError(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range suppressedFastKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	folded := foldForErrorMatching(s)
	for _, snip := range suppressedFoldedSnippets {
		if strings.Contains(folded, snip) {
			return true
		}
	}
	return false
}

// CurrentUserPrincipal resolves the current account in DOMAIN\User form,
// best effort. Resolution failures degrade to whatever partial identity is
// available; the runner substitutes the well-known Users SID when this ends
// up empty.
func CurrentUserPrincipal() string {
	name := os.Getenv("USERNAME")
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	if runtime.GOOS == "windows" && name != "" && !strings.Contains(name, `\`) {
		if domain := os.Getenv("USERDOMAIN"); domain != "" {
			return domain + `\` + name
		}
	}
	return name
}

// BundledToolPath returns the accesschk.exe shipped alongside the binary:
// tools/accesschk.exe next to the executable, falling back to the
// executable's own directory.
func BundledToolPath() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("tools", "accesschk.exe")
	}
	base := filepath.Dir(exe)
	bundled := filepath.Join(base, "tools", "accesschk.exe")
	if _, err := os.Stat(bundled); err == nil {
		return bundled
	}
	return filepath.Join(base, "accesschk.exe")
}

// DefaultTargets returns the platform's catch-all scan root.
func DefaultTargets() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return string(os.PathSeparator)
}
