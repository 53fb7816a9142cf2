package scan

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Characters that are shell-meaningful and never legitimate in an accesschk
// argument. Arguments are passed as a vector, not a shell string, so this is
// defense in depth rather than the primary barrier.
var dangerousChars = []string{"&", "|", ";", "$", "`", "<", ">"}

func findDangerous(s string, extra ...string) []string {
	chars := append(append([]string(nil), dangerousChars...), extra...)
	var found []string
	for _, c := range chars {
		if strings.Contains(s, c) {
			found = append(found, c)
		}
	}
	return found
}

// ValidateExecutablePath checks that path points at the real accesschk.exe.
// The filename check is deliberate: the launcher must refuse to run anything
// that merely sits where the tool was expected.
func ValidateExecutablePath(path string, maxLen int) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("executable path is empty")
	}
	normalized := filepath.Clean(path)
	if len(normalized) > maxLen {
		return fmt.Errorf("path exceeds %d characters", maxLen)
	}
	if found := findDangerous(normalized); len(found) > 0 {
		return fmt.Errorf("path contains dangerous characters: %s", strings.Join(found, " "))
	}
	info, err := os.Stat(normalized)
	if err != nil || info.IsDir() {
		return fmt.Errorf("file does not exist: %s", normalized)
	}
	if ext := strings.ToLower(filepath.Ext(normalized)); ext != ".exe" {
		return fmt.Errorf("disallowed extension %q (want .exe)", ext)
	}
	if name := strings.ToLower(filepath.Base(normalized)); name != "accesschk.exe" {
		return fmt.Errorf("executable must be accesschk.exe, got %q", name)
	}
	return nil
}

// ValidateTargets splits a ;-separated target list, screens each entry, and
// returns the cleaned paths. Nonexistent targets are allowed; accesschk
// reports those itself.
func ValidateTargets(raw string, maxLen int) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no targets given")
	}
	var targets []string
	for _, part := range strings.Split(raw, ";") {
		p := strings.Trim(strings.TrimSpace(part), `"`)
		if p == "" {
			continue
		}
		// Semicolon is the separator, so by now it cannot appear inside an entry.
		if found := findDangerous(p); len(found) > 0 {
			return nil, fmt.Errorf("dangerous characters in %q: %s", p, strings.Join(found, " "))
		}
		normalized := filepath.Clean(p)
		if len(normalized) > maxLen {
			return nil, fmt.Errorf("target too long: %s", p)
		}
		targets = append(targets, normalized)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no valid targets found")
	}
	return targets, nil
}

// Flags accesschk understands; used to recognize legitimate arguments that
// happen to contain screened characters.
var knownFlags = map[string]bool{
	"-accepteula": true,
	"-nobanner":   true,
	"-w":          true,
	"-s":          true,
}

// SanitizeArgs screens an argument vector before launch. Arguments with
// shell-meaningful characters are kept (quoted) only when they are
// recognizably a real path or a known flag; anything else is dropped with a
// warning rather than handed to the process.
func SanitizeArgs(args []string) []string {
	sanitized := make([]string, 0, len(args))
	for _, arg := range args {
		found := findDangerous(arg)
		if len(found) == 0 {
			sanitized = append(sanitized, arg)
			continue
		}
		_, statErr := os.Stat(arg)
		if statErr == nil || strings.HasPrefix(arg, "-") || knownFlags[arg] {
			sanitized = append(sanitized, fmt.Sprintf("%q", arg))
			continue
		}
		log.Printf("dropping suspicious argument %q (chars: %s)", arg, strings.Join(found, " "))
	}
	return sanitized
}
