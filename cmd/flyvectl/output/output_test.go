package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	ID   uint   `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

func render(t *testing.T, f Format, items []item) string {
	t.Helper()
	var buf bytes.Buffer
	err := Printer{Format: f, Out: &buf}.Print(items, []string{"ID", "NAME"}, func(add func(...any)) {
		for _, it := range items {
			add(it.ID, it.Name)
		}
	})
	require.NoError(t, err)
	return buf.String()
}

func TestTable(t *testing.T) {
	out := render(t, Table, []item{{1, "pixel"}, {12, "ipad"}})
	require.Equal(t, "ID  NAME\n1   pixel\n12  ipad\n", out)
	require.Equal(t, "No resources found.\n", render(t, Table, nil))
}

func TestStructuredFormats(t *testing.T) {
	require.JSONEq(t, `[{"id":1,"name":"pixel"}]`, render(t, JSON, []item{{1, "pixel"}}))
	require.Equal(t, "- id: 1\n  name: pixel\n", render(t, YAML, []item{{1, "pixel"}}))
}

func TestParse(t *testing.T) {
	f, err := Parse("")
	require.NoError(t, err)
	require.Equal(t, Table, f)
	f, err = Parse("JSON")
	require.NoError(t, err)
	require.Equal(t, JSON, f)
	_, err = Parse("xml")
	require.Error(t, err)
}
