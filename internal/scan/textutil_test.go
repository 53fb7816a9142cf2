package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWriteLine(t *testing.T) {
	t.Run("whole-word tokens match", func(t *testing.T) {
		assert.True(t, IsWriteLine(`RW BUILTIN\Users`))
		assert.True(t, IsWriteLine(`  rw NT SERVICE\TrustedInstaller`))
		assert.True(t, IsWriteLine("FILE_WRITE_DATA granted"))
		assert.True(t, IsWriteLine("has WRITE access"))
		assert.True(t, IsWriteLine("perm :w on object"))
	})

	t.Run("embedded substrings do not match", func(t *testing.T) {
		assert.False(t, IsWriteLine("software inventory"))
		assert.False(t, IsWriteLine("rewrite pending"))
		assert.False(t, IsWriteLine(`C:\Windows\System32`))
	})
}

func TestHasRWPrefix(t *testing.T) {
	assert.True(t, HasRWPrefix(`RW BUILTIN\Users`))
	assert.True(t, HasRWPrefix(`   rw DOMAIN\bob`))
	assert.False(t, HasRWPrefix(`R  BUILTIN\Users`))
	assert.False(t, HasRWPrefix(`C:\Program Files`))
	assert.False(t, HasRWPrefix("rewind"))
}

func TestExtractFirstPath(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare drive path", `C:\Program Files\7-Zip`, `C:\Program Files\7-Zip`},
		{"path after permission columns", `RW BUILTIN\Users  C:\Program Files\Common Files\test.txt`, `C:\Program Files\Common Files\test.txt`},
		{"unc path", `\\server\share\folder`, `\\server\share\folder`},
		{"path with spaces runs to end of line", `  C:\Users\Jean Dupont\Documents  `, `C:\Users\Jean Dupont\Documents`},
		{"trailing quote trimmed", `Cannot open "C:\Temp\locked"`, `C:\Temp\locked`},
		{"no path", "No path here", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractFirstPath(tc.in))
		})
	}
}

func TestHasASCIIAlnum(t *testing.T) {
	assert.True(t, HasASCIIAlnum("abc"))
	assert.True(t, HasASCIIAlnum("---3---"))
	assert.False(t, HasASCIIAlnum("═══╩═"))
	assert.False(t, HasASCIIAlnum("   "))
	assert.False(t, HasASCIIAlnum(""))
}

func TestIsSuppressedError(t *testing.T) {
	t.Run("known diagnostics", func(t *testing.T) {
		assert.True(t, IsSuppressedError("Error getting security: access denied."))
		assert.True(t, IsSuppressedError("Error: Access is denied."))
		assert.True(t, IsSuppressedError(`C:\pagefile.sys has a non-canonical DACL: Explicit Deny after Explicit Allow`))
		assert.True(t, IsSuppressedError("The system cannot find the file specified."))
	})

	t.Run("localized diagnostics with and without accents", func(t *testing.T) {
		assert.True(t, IsSuppressedError("La syntaxe du nom de fichier, de répertoire ou de volume est incorrecte."))
		assert.True(t, IsSuppressedError("La syntaxe du nom de fichier, de repertoire ou de volume est incorrecte."))
		assert.True(t, IsSuppressedError("Accès refusé."))
		assert.True(t, IsSuppressedError("Le fichier spécifié est introuvable."))
	})

	t.Run("ordinary output passes", func(t *testing.T) {
		assert.False(t, IsSuppressedError(`RW BUILTIN\Users`))
		assert.False(t, IsSuppressedError(`C:\Program Files\7-Zip`))
		assert.False(t, IsSuppressedError(""))
	})
}
