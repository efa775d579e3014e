// Package export 将存储中的表导出为 CSV 或终端预览
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var ErrUnknownEncoding = errors.New("export: unknown encoding")

// utf8BOM Excel 依赖 BOM 识别 UTF-8
const utf8BOM = "\uFEFF"

// resolveEncoding 返回 nil 表示 UTF-8（带 BOM）
func resolveEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return nil, nil
	case "euc-kr", "euckr", "cp949":
		return korean.EUCKR, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// WriteCSV 按 columns 顺序写出表头和各行，缺失的字段写空串。
// 非 UTF-8 编码下无法表示的字符被替换，不会中断导出。
func WriteCSV(w io.Writer, records []collector.Record, columns []string, enc string) error {
	e, err := resolveEncoding(enc)
	if err != nil {
		return err
	}

	var out io.Writer = w
	var tw *transform.Writer
	if e == nil {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}
	} else {
		tw = transform.NewWriter(w, encoding.ReplaceUnsupported(e.NewEncoder()))
		out = tw
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, r := range records {
		for i, c := range columns {
			row[i] = r[c]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

// WritePreview 输出对齐的文本表格，韩文等宽字符按两列计算；单元格超过 maxWidth 时截断
func WritePreview(w io.Writer, records []collector.Record, columns []string, maxWidth int) error {
	if maxWidth <= 0 {
		maxWidth = 40
	}
	cell := func(s string) string {
		s = strings.Join(strings.Fields(s), " ")
		return runewidth.Truncate(s, maxWidth, "…")
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = runewidth.StringWidth(cell(c))
	}
	for _, r := range records {
		for i, c := range columns {
			if n := runewidth.StringWidth(cell(r[c])); n > widths[i] {
				widths[i] = n
			}
		}
	}

	writeRow := func(vals []string) error {
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = runewidth.FillRight(cell(v), widths[i])
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " | "), " "))
		return err
	}

	if err := writeRow(columns); err != nil {
		return err
	}
	sep := make([]string, len(columns))
	for i := range columns {
		sep[i] = strings.Repeat("-", widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.Join(sep, "-+-")); err != nil {
		return err
	}
	vals := make([]string, len(columns))
	for _, r := range records {
		for i, c := range columns {
			vals[i] = r[c]
		}
		if err := writeRow(vals); err != nil {
			return err
		}
	}
	return nil
}
