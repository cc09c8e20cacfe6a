package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsePayload struct {
	Name string `json:"name"`
}

func TestParseJSON_Clean(t *testing.T) {
	got, err := ParseJSON[parsePayload](`{"name": "Henry VIII"}`)
	require.NoError(t, err)
	assert.Equal(t, "Henry VIII", got.Name)
}

func TestParseJSON_Fenced(t *testing.T) {
	response := "Here is the result:\n```json\n{\"name\": \"Cromwell\"}\n```\nLet me know if you need more."
	got, err := ParseJSON[parsePayload](response)
	require.NoError(t, err)
	assert.Equal(t, "Cromwell", got.Name)
}

func TestParseJSON_NoObject(t *testing.T) {
	_, err := ParseJSON[parsePayload]("no structured data here")
	assert.Error(t, err)
}

func TestParseJSON_Malformed(t *testing.T) {
	_, err := ParseJSON[parsePayload](`{"name": `)
	assert.Error(t, err)
}
