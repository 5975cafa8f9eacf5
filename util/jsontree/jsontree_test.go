package jsontree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, data string) *Value {
	t.Helper()
	v, err := Parse([]byte(data))
	require.NoError(t, err)
	return v
}

func TestParsePreservesKeyOrder(t *testing.T) {
	doc := `{"zebra":1,"apple":{"c":true,"a":null},"mango":[1,2,3]}`
	v := mustParse(t, doc)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, v.Keys())
	assert.Equal(t, doc, string(v.Marshal()))
}

func TestParsePreservesNumberFormatting(t *testing.T) {
	doc := `{"size":15931131,"frac":1.0,"exp":1e3}`
	v := mustParse(t, doc)
	assert.Equal(t, doc, string(v.Marshal()))
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}

func TestMergeInsertsMissingKeys(t *testing.T) {
	base := mustParse(t, `{"id":"custom"}`)
	overlay := mustParse(t, `{"id":"vanilla","assets":"1.2"}`)

	merged := Merge(base, overlay)

	id, _ := merged.Get("id")
	assert.Equal(t, "custom", id.StringOr(""))
	assets, ok := merged.Get("assets")
	require.True(t, ok)
	assert.Equal(t, "1.2", assets.StringOr(""))
}

func TestMergeRecursesIntoNestedObjects(t *testing.T) {
	base := mustParse(t, `{"arguments":{"jvm":["-javaagent:flap.jar"]}}`)
	overlay := mustParse(t, `{"arguments":{"jvm":["-Xss1M"],"game":["--demo"]}}`)

	merged := Merge(base, overlay)

	arguments, _ := merged.Get("arguments")
	jvm, _ := arguments.Get("jvm")
	elements, err := jvm.Array()
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "-javaagent:flap.jar", elements[0].StringOr(""))
	_, ok := arguments.Get("game")
	assert.True(t, ok)
}

func TestMergeKeepsBaseOnTypeConflict(t *testing.T) {
	base := mustParse(t, `{"libraries":[{"name":"a:b:1"}]}`)
	overlay := mustParse(t, `{"libraries":{"oops":true}}`)

	merged := Merge(base, overlay)

	libraries, _ := merged.Get("libraries")
	assert.True(t, libraries.IsArray())
}

func TestMergeIsIdempotent(t *testing.T) {
	base := mustParse(t, `{"id":"x","nested":{"a":1}}`)
	overlay := mustParse(t, `{"id":"y","nested":{"a":2,"b":3},"extra":[1]}`)

	once := Merge(base, overlay)
	twice := Merge(once, overlay)
	assert.True(t, Equal(once, twice))
	assert.Equal(t, string(once.Marshal()), string(twice.Marshal()))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := mustParse(t, `{"a":{"x":1}}`)
	overlay := mustParse(t, `{"a":{"y":2},"b":3}`)
	baseCopy := base.Clone()
	overlayCopy := overlay.Clone()

	Merge(base, overlay)

	assert.True(t, Equal(base, baseCopy))
	assert.True(t, Equal(overlay, overlayCopy))
}

func TestSetReplacesWithoutDuplicatingKey(t *testing.T) {
	v := mustParse(t, `{"id":"old","type":"release"}`)
	require.NoError(t, v.Set("id", NewString("new")))
	assert.Equal(t, []string{"id", "type"}, v.Keys())
	assert.Equal(t, `{"id":"new","type":"release"}`, string(v.Marshal()))
}

func TestPrepend(t *testing.T) {
	v := mustParse(t, `["b","c"]`)
	require.NoError(t, v.Prepend(NewString("a")))
	assert.Equal(t, `["a","b","c"]`, string(v.Marshal()))
}

func TestEqualIgnoresKeyOrder(t *testing.T) {
	a := mustParse(t, `{"x":1,"y":2}`)
	b := mustParse(t, `{"y":2,"x":1}`)
	assert.True(t, Equal(a, b))
}

func TestMarshalIndentRoundTrips(t *testing.T) {
	v := mustParse(t, `{"components":[{"uid":"net.minecraft"}],"formatVersion":1}`)
	reparsed, err := Parse(v.MarshalIndent())
	require.NoError(t, err)
	assert.True(t, Equal(v, reparsed))
}
