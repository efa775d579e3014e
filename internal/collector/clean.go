package collector

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var tagPattern = regexp.MustCompile(`</?[^>]+>`)

// Charset 可配置的字符白名单，nil 表示不过滤
type Charset struct {
	tables []*unicode.RangeTable
}

// korean 预设即 [가-힣a-zA-Z0-9]
var (
	asciiAlnum = &unicode.RangeTable{
		R16: []unicode.Range16{
			{Lo: '0', Hi: '9', Stride: 1},
			{Lo: 'A', Hi: 'Z', Stride: 1},
			{Lo: 'a', Hi: 'z', Stride: 1},
		},
		LatinOffset: 3,
	}
	hangulSyllables = &unicode.RangeTable{
		R16: []unicode.Range16{{Lo: 0xAC00, Hi: 0xD7A3, Stride: 1}},
	}

	KoreanAlnum = &Charset{tables: []*unicode.RangeTable{hangulSyllables, asciiAlnum}}
)

func NewCharset(tables ...*unicode.RangeTable) *Charset {
	return &Charset{tables: tables}
}

// ParseCharset 从逗号分隔的配置构造白名单，支持：
//   - 预设：ascii-alnum、hangul（完整音节区 AC00-D7A3）、korean（两者合并）
//   - Unicode 脚本名或类别名，如 Han、Latin、L、Nd
//   - 十六进制码点区间，如 AC00-D7A3 或单个码点 20
//
// 空字符串返回 nil（不过滤）。
func ParseCharset(spec string) (*Charset, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	cs := &Charset{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch strings.ToLower(part) {
		case "ascii-alnum":
			cs.tables = append(cs.tables, asciiAlnum)
			continue
		case "hangul":
			cs.tables = append(cs.tables, hangulSyllables)
			continue
		case "korean":
			cs.tables = append(cs.tables, KoreanAlnum.tables...)
			continue
		}
		if t, ok := unicode.Scripts[part]; ok {
			cs.tables = append(cs.tables, t)
			continue
		}
		if t, ok := unicode.Categories[part]; ok {
			cs.tables = append(cs.tables, t)
			continue
		}
		t, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		cs.tables = append(cs.tables, t)
	}
	return cs, nil
}

func parseRange(s string) (*unicode.RangeTable, error) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	l, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(lo), "U+"), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("charset: bad range %q: %w", s, err)
	}
	h, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(hi), "U+"), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("charset: bad range %q: %w", s, err)
	}
	if h < l || h > unicode.MaxRune {
		return nil, fmt.Errorf("charset: bad range %q", s)
	}
	return &unicode.RangeTable{R32: []unicode.Range32{{Lo: uint32(l), Hi: uint32(h), Stride: 1}}}, nil
}

func (c *Charset) Allows(r rune) bool {
	if c == nil {
		return true
	}
	return unicode.IsOneOf(c.tables, r)
}

// Cleaner 对指定的自由文本字段做清洗
type Cleaner struct {
	Allow  *Charset
	Fields []string
}

// Clean 去掉标签、还原 HTML 实体、按白名单替换为空格并压缩空白。
// 结果不再包含标签或实体，重复调用结果不变。
func (c *Cleaner) Clean(s string) string {
	// 每一轮只要有变化长度就严格变短，必然收敛
	for {
		next := html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
		if next == s {
			break
		}
		s = next
	}
	if c != nil && c.Allow != nil {
		s = strings.Map(func(r rune) rune {
			if c.Allow.Allows(r) {
				return r
			}
			return ' '
		}, s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// Apply 只清洗 Fields 中列出的字段，返回新的 Record
func (c *Cleaner) Apply(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	if c == nil {
		return out
	}
	for _, f := range c.Fields {
		if v, ok := out[f]; ok {
			out[f] = c.Clean(v)
		}
	}
	return out
}
