package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/zhouzirui/weibo-seed/internal/dataset"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadFiltersNonObjectEntries(t *testing.T) {
	path := writeFile(t, "data.json", []byte(`[{"用户ID": "1"}, 42, "text", null, [1], {"用户ID": "2"}]`))

	ds, err := dataset.NewLoader(nil, nil).Load(context.Background(), path)
	require.NoError(t, err)

	records := ds.Records()
	require.Len(t, records, 2)
	id, _ := records[1].Get("用户ID")
	assert.Equal(t, "2", id)

	rejected := ds.Rejected()
	require.Len(t, rejected, 4)
	assert.Equal(t, 1, rejected[0].Index)
	assert.Equal(t, "number", rejected[0].Kind)
	assert.Equal(t, "string", rejected[1].Kind)
	assert.Equal(t, "null", rejected[2].Kind)
	assert.Equal(t, "array", rejected[3].Kind)
}

func TestLoadObjectTopLevelIsFormatError(t *testing.T) {
	path := writeFile(t, "object.json", []byte(`{"用户ID": "1"}`))

	_, err := dataset.NewLoader(nil, nil).Load(context.Background(), path)
	require.Error(t, err)

	var formatErr *dataset.FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, path, formatErr.Path)
	assert.Contains(t, err.Error(), path)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeFile(t, "broken.json", []byte(`[{"a": `))

	_, err := dataset.NewLoader(nil, nil).Load(context.Background(), path)
	var formatErr *dataset.FormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	inputs := map[string]string{
		"trailing text":    `[{"a": 1}] trailing garbage`,
		"extra bracket":    `[{"a": 1}]]`,
		"second value":     `[{"a": 1}]{}`,
		"double decimal":   `[{"粉丝数量": 1.2.3}]`,
		"letters in digit": `[{"a": 12abc}]`,
		"lone minus":       `[{"a": -}]`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			ds, err := dataset.Parse("weibo.json", []byte(input))
			assert.Nil(t, ds)
			var formatErr *dataset.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, "invalid json", formatErr.Reason)
		})
	}
}

func TestParseAcceptsSurroundingWhitespace(t *testing.T) {
	ds, err := dataset.Parse("weibo.json", []byte("\n  [{\"a\": -1.5e3}]  \n"))
	require.NoError(t, err)
	require.Len(t, ds.Records(), 1)

	raw, err := ds.Records()[0].MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": -1.5e3}`, string(raw))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := dataset.NewLoader(nil, nil).Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestParsePreservesNestedKeyOrder(t *testing.T) {
	ds, err := dataset.Parse("inline", []byte(`[{"z": 1, "a": {"k3": 1, "k1": 2, "k2": 3}, "m": [1, "x", true]}]`))
	require.NoError(t, err)

	rec := ds.Records()[0]
	assert.Equal(t, []string{"z", "a", "m"}, rec.Keys())
	assert.Equal(t, []string{"k3", "k1", "k2"}, rec.Object("a").Keys())

	list, ok := rec.Get("m")
	require.True(t, ok)
	assert.Len(t, list, 3)
}

func TestParseStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`[{"a": "b"}]`)...)
	ds, err := dataset.Parse("bom", data)
	require.NoError(t, err)
	assert.False(t, ds.Transcoded)
	assert.Len(t, ds.Records(), 1)
}

func TestParseTranscodesGB18030(t *testing.T) {
	encoded, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(`[{"用户ID": "微博"}]`))
	require.NoError(t, err)

	ds, err := dataset.Parse("gbk", encoded)
	require.NoError(t, err)
	assert.True(t, ds.Transcoded)

	id, _ := ds.Records()[0].Get("用户ID")
	assert.Equal(t, "微博", id)
}

func TestObjectMarshalKeepsOrder(t *testing.T) {
	obj := dataset.NewObject()
	obj.Set("b", 1)
	obj.Set("a", "x")
	obj.Set("b", 2)

	raw, err := obj.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2,"a":"x"}`, string(raw))
}

func TestStringifyAndTruthy(t *testing.T) {
	ds, err := dataset.Parse("values", []byte(`[{"n": 12345, "z": 0, "s": "  hi  ", "b": false}]`))
	require.NoError(t, err)
	rec := ds.Records()[0]

	n, _ := rec.Get("n")
	z, _ := rec.Get("z")
	s, _ := rec.Get("s")
	b, _ := rec.Get("b")

	assert.Equal(t, "12345", dataset.Stringify(n, ""))
	assert.Equal(t, "hi", dataset.Stringify(s, ""))
	assert.Equal(t, "fallback", dataset.Stringify(nil, "fallback"))
	assert.True(t, dataset.Truthy(n))
	assert.False(t, dataset.Truthy(z))
	assert.False(t, dataset.Truthy(b))
	assert.False(t, dataset.Truthy(""))
}
