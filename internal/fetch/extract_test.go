package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderedGamePage = `<html><body>
<h1>Portal 2</h1>
<div class="details">
	<div><b>Genres:</b><div>Puzzle, Platformer</div></div>
	<div><b>Tags:</b><div>Co-op, Funny, Sci-fi</div></div>
	<div><b>Features:</b><div>Single-player, Steam Cloud</div></div>
	<div><b>Languages:</b><div>English, German, French</div></div>
</div>
</body></html>`

func TestExtractDetails(t *testing.T) {
	t.Parallel()

	details, err := ExtractDetails(renderedGamePage)
	require.NoError(t, err)

	assert.Equal(t, []string{"Puzzle", "Platformer"}, details.Genres)
	assert.Equal(t, []string{"Co-op", "Funny", "Sci-fi"}, details.Tags)
	assert.Equal(t, []string{"Single-player", "Steam Cloud"}, details.Features)
	assert.Equal(t, []string{"English", "German", "French"}, details.Languages)
}

func TestExtractDetails_MissingMarker(t *testing.T) {
	t.Parallel()

	_, err := ExtractDetails(`<html><body><h1>Loading...</h1></body></html>`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Genres:")
}

func TestExtractDetails_PartialSections(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<div><b>Genres:</b><div>Action</div></div>
	</body></html>`

	details, err := ExtractDetails(page)
	require.NoError(t, err)
	assert.Equal(t, []string{"Action"}, details.Genres)
	assert.Nil(t, details.Tags)
	assert.Nil(t, details.Features)
	assert.Nil(t, details.Languages)
}

func TestValidateRendered(t *testing.T) {
	t.Parallel()

	details, err := ExtractDetails(renderedGamePage)
	require.NoError(t, err)
	assert.NoError(t, validateRendered(details, 620))

	// A page can carry the marker while every list is still empty.
	empty, err := ExtractDetails(`<html><body><div><b>Genres:</b><div></div></div></body></html>`)
	require.NoError(t, err)
	err = validateRendered(empty, 620)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "620")
}

func TestSplitNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain list", "Action, RPG, Indie", []string{"Action", "RPG", "Indie"}},
		{"extra whitespace", "  Action ,RPG  ", []string{"Action", "RPG"}},
		{"empty segments", "Action,,RPG,", []string{"Action", "RPG"}},
		{"empty input", "", nil},
		{"only separators", ", ,", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, splitNames(tc.raw))
		})
	}
}

func TestIsNavigationRace(t *testing.T) {
	t.Parallel()

	assert.True(t, isNavigationRace(errMsg("context changed during evaluation")))
	assert.True(t, isNavigationRace(errMsg("Cannot find context with specified id")))
	assert.False(t, isNavigationRace(errMsg("net::ERR_CONNECTION_REFUSED")))
}

type errMsg string

func (e errMsg) Error() string { return string(e) }
