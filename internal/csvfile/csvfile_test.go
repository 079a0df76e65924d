package csvfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte("id, email ,active\r\n1,a@example.com,true\r\n\r\n2,\"b, c\",false\n3\n")

	tbl, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "email", "active"}, tbl.Header)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "a@example.com", tbl.Rows[0].Get("email"))
	assert.Equal(t, "b, c", tbl.Rows[1].Get("email"))
	assert.Equal(t, "", tbl.Rows[2].Get("email"))
	assert.Equal(t, "", tbl.Rows[2].Get("missing"))
}

func TestParse_Empty(t *testing.T) {
	tbl, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func TestParseKeyValues_KeepsOrderAndLastWins(t *testing.T) {
	kvs, err := ParseKeyValues([]byte("key,value\ntitle,Words\nrounds,3\ntitle,Words 2\n,ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, []KV{{Key: "title", Value: "Words 2"}, {Key: "rounds", Value: "3"}}, kvs)
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want string
	}{
		{name: "header only", rows: nil, want: "a,b"},
		{name: "plain", rows: [][]string{{"1", "x"}}, want: "a,b\n1,x"},
		{name: "comma quoted", rows: [][]string{{"1", "x, y"}}, want: "a,b\n1,\"x, y\""},
		{name: "quote escaped", rows: [][]string{{"1", `say "hi"`}}, want: "a,b\n1,\"say \"\"hi\"\"\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode([]string{"a", "b"}, tt.rows)))
		})
	}
}

func TestEncodeKeyValues_ParsesBack(t *testing.T) {
	in := []KV{{Key: "updatedAt", Value: "1/2/2026, 3:04:05 PM"}, {Key: "title", Value: "Fox"}}
	out, err := ParseKeyValues(EncodeKeyValues(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"x|y|z"`, Quote("x|y|z"))
	assert.Equal(t, `""`, Quote(""))
	assert.Equal(t, `"a""b"`, Quote(`a"b`))
}

func TestParse_RawKeepsQuotedContent(t *testing.T) {
	data := []byte("round,selected,value\r\n 1 , 2|3 ,\"  x\ry  \"\r2,,\"a\"\n")

	tbl, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "1", tbl.Rows[0].Get("round"))
	assert.Equal(t, "2|3", tbl.Rows[0].Get("selected"))
	assert.Equal(t, "  x\ry  ", tbl.Rows[0].Raw("value"))
	assert.Equal(t, "x\ry", tbl.Rows[0].Get("value"))
	assert.Equal(t, "2", tbl.Rows[1].Get("round"))
	assert.Equal(t, "a", tbl.Rows[1].Raw("value"))
}
