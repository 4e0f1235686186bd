package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		in   string
		want ValueKind
	}{
		{"null", KindNull},
		{"true", KindBool},
		{"3.5", KindNumber},
		{`"x"`, KindString},
		{"[1,2]", KindArray},
		{`{"a":1}`, KindObject},
	}
	for _, tt := range tests {
		v, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, v.Kind(), tt.in)
	}
}

func TestParse_RejectsTrailingData(t *testing.T) {
	_, err := Parse(`{"a":1} {"b":2}`)
	assert.Error(t, err)
}

func TestValue_Accessors(t *testing.T) {
	v, err := Parse(`{"operation":"add","a":5,"b":3.5,"flags":[true,null],"nested":{"k":"v"}}`)
	require.NoError(t, err)

	op, ok := v.Field("operation")
	require.True(t, ok)
	s, ok := op.AsString()
	assert.True(t, ok)
	assert.Equal(t, "add", s)

	a, _ := v.Field("a")
	n, ok := a.AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	b, _ := v.Field("b")
	f, ok := b.AsFloat()
	assert.True(t, ok)
	assert.InDelta(t, 3.5, f, 1e-9)

	flags, _ := v.Field("flags")
	items := flags.AsArray()
	require.Len(t, items, 2)
	bv, ok := items[0].AsBool()
	assert.True(t, ok)
	assert.True(t, bv)
	assert.True(t, items[1].IsNull())

	assert.Equal(t, []string{"a", "b", "flags", "nested", "operation"}, v.Keys())
	assert.Equal(t, 5, v.Len())

	_, ok = v.Field("missing")
	assert.False(t, ok)

	// Wrong-kind accessors report false rather than panicking.
	_, ok = op.AsFloat()
	assert.False(t, ok)
	assert.Nil(t, op.AsArray())
	assert.Nil(t, op.Keys())
}

func TestValue_MapRoundTrip(t *testing.T) {
	v := FromAny(map[string]any{"url": "example.com", "max_chars": 100, "tags": []string{"a"}})
	m := v.Map()
	require.NotNil(t, m)
	assert.Equal(t, "example.com", m["url"])
	assert.Equal(t, float64(100), m["max_chars"])
	assert.Equal(t, []any{"a"}, m["tags"])

	assert.Nil(t, String("x").Map())
}

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, "null", v.String())
}

func TestValue_EmbeddedInStruct(t *testing.T) {
	type call struct {
		Name string `json:"name"`
		Args Value  `json:"args"`
	}
	in := call{Name: "echo", Args: Object(map[string]Value{"text": String("hi")})}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"echo","args":{"text":"hi"}}`, string(data))

	var out call
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Args.Equal(in.Args))
}

func TestValue_Equal(t *testing.T) {
	a := Array(Number(1), String("x"), Object(map[string]Value{"k": Bool(true)}))
	b := Array(Number(1), String("x"), Object(map[string]Value{"k": Bool(true)}))
	c := Array(Number(1), String("y"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, Number(0).Equal(Null()))
	assert.True(t, EmptyObject().Equal(Object(nil)))
}
