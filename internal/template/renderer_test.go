package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Substitutes(t *testing.T) {
	out, err := Render("Hi ${first_name} ${last_name}!", map[string]string{
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada Lovelace!", out)
}

func TestRender_NoPlaceholders(t *testing.T) {
	out, err := Render("plain text, no tokens", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text, no tokens", out)
}

func TestRender_EmptyTemplate(t *testing.T) {
	out, err := Render("", map[string]string{"unused": "x"})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRender_UndeclaredPlaceholder(t *testing.T) {
	_, err := Render("Hi ${nickname}", map[string]string{"first_name": "Ada"})
	require.Error(t, err)

	var undeclared *ErrUndeclaredPlaceholder
	require.True(t, errors.As(err, &undeclared))
	assert.Equal(t, "nickname", undeclared.Name)
}

func TestRender_UnterminatedPlaceholder(t *testing.T) {
	_, err := Render("Hi ${first_name", map[string]string{"first_name": "Ada"})
	require.Error(t, err)
}

func TestRender_RepeatedPlaceholder(t *testing.T) {
	out, err := Render("${x}-${x}", map[string]string{"x": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a-a", out)
}
