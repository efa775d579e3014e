package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

var rateRows = []collector.Record{
	{"date": "2026-10-18", "통화": "미국 USD", "매매기준율": "1,380.50"},
	{"date": "2026-10-18", "통화": "일본 JPY (100)"},
}

func TestWriteCSVUTF8WithBOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rateRows, []string{"date", "통화", "매매기준율"}, ""))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\uFEFF"))
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\uFEFF"))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"date", "통화", "매매기준율"},
		{"2026-10-18", "미국 USD", "1,380.50"},
		{"2026-10-18", "일본 JPY (100)", ""},
	}, rows)
}

func TestWriteCSVEUCKR(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rateRows, []string{"통화"}, "euc-kr"))

	assert.False(t, bytes.HasPrefix(buf.Bytes(), []byte("\uFEFF")))
	decoded, err := korean.EUCKR.NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "통화\n미국 USD\n일본 JPY (100)\n", string(decoded))
}

func TestWriteCSVReplacesUnsupported(t *testing.T) {
	var buf bytes.Buffer
	rows := []collector.Record{{"title": "뉴스 😀"}}
	require.NoError(t, WriteCSV(&buf, rows, []string{"title"}, "cp949"))
	decoded, err := korean.EUCKR.NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(decoded), "title\n뉴스 "))
}

func TestWriteCSVUnknownEncoding(t *testing.T) {
	err := WriteCSV(&bytes.Buffer{}, rateRows, []string{"date"}, "klingon")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestWritePreviewAlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePreview(&buf, rateRows, []string{"통화", "매매기준율"}, 0))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	// 第二列分隔符在每行中的显示列位置一致
	col := func(s string) int {
		idx := strings.Index(s, "|")
		if idx < 0 {
			idx = strings.Index(s, "+")
		}
		return runewidth.StringWidth(s[:idx])
	}
	want := col(lines[0])
	for _, l := range lines[1:] {
		assert.Equal(t, want, col(l), l)
	}
}

func TestWritePreviewTruncates(t *testing.T) {
	var buf bytes.Buffer
	rows := []collector.Record{{"title": strings.Repeat("가", 30)}}
	require.NoError(t, WritePreview(&buf, rows, []string{"title"}, 10))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.LessOrEqual(t, runewidth.StringWidth(lines[2]), 10)
	assert.True(t, strings.HasSuffix(lines[2], "…"))
}
