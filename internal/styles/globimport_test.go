package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/testutil"
)

func TestExpandGlobImports(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"components/button.scss":   "",
		"components/_card.scss":    "",
		"components/forms/in.scss": "",
		"components/readme.md":     "",
	})

	src := "@import \"vars\";\n  @import \"components/**/*.scss\";\n.a{}\n"
	got, err := ExpandGlobImports(src, dir)
	require.NoError(t, err)
	assert.Equal(t, "@import \"vars\";\n"+
		"  @import \"components/_card.scss\";\n"+
		"  @import \"components/button.scss\";\n"+
		"  @import \"components/forms/in.scss\";\n"+
		".a{}\n", got)
}

func TestExpandGlobImportsIndentedSyntax(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"parts/a.sass": ""})

	got, err := ExpandGlobImports("@import 'parts/*'\n", dir)
	require.NoError(t, err)
	assert.Equal(t, "@import \"parts/a.sass\"\n", got)
}

func TestExpandGlobImportsNoMatches(t *testing.T) {
	got, err := ExpandGlobImports("@import \"missing/*.scss\";\n.a{}", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "\n.a{}", got)
}
