package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader("<name>Abebe</name>\n<age>34</age>\n<kebele>7</kebele>"))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"parse", "--filename", "card.jpg"})
	require.NoError(t, rootCmd.Execute())

	var got parseOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "card.jpg", got.Filename)
	assert.False(t, got.Complete)
	assert.Equal(t, "34", got.Fields["age"].Value)
	assert.Equal(t, "07", got.Fields["kebele"].Value)
	assert.Equal(t, "missing", got.Fields["sex"].Outcome)
	assert.Contains(t, got.Notes, "sex: missing")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "medcards dev")
}
