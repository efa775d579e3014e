package collector

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	hanaRateURL     = "https://www.kebhana.com/cms/rate/wpfxd651_01i_01.do"
	hanaRateTimeout = 15 * time.Second

	// ExchangeRateKey 汇率表的自然键字段
	ExchangeRateKey = "date"
)

// 东九区，汇率按韩国日期发布
var locKST = time.FixedZone("KST", 9*60*60)

// ExchangeRateFetcher 拉取 KEB 하나은행 前一日的汇率表（最终公示，pbldDvCd=3）
type ExchangeRateFetcher struct {
	// URL 为空时使用官方地址
	URL string
	// Now 为空时使用 time.Now
	Now func() time.Time
}

func (f *ExchangeRateFetcher) Name() string {
	return "exchange_rate"
}

// Date 返回本次采集的目标日期（昨天，YYYY-MM-DD）
func (f *ExchangeRateFetcher) Date() string {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return now().In(locKST).AddDate(0, 0, -1).Format("2006-01-02")
}

// Fetch 返回目标日期的汇率行，每行都带有 date 列
func (f *ExchangeRateFetcher) Fetch() (string, []Record, error) {
	date := f.Date()
	log.Printf("fetch exchange rate for %s...", date)

	target := f.URL
	if target == "" {
		target = hanaRateURL
	}

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64)"),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(hanaRateTimeout)

	var (
		records []Record
		parsed  bool
		status  int
		failErr error
	)

	c.OnHTML("table", func(e *colly.HTMLElement) {
		if parsed {
			return
		}
		parsed = true
		records = parseRateTable(e.DOM, date)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			failErr = &UpstreamError{Source: f.Name(), StatusCode: r.StatusCode, Body: string(r.Body)}
			return
		}
		failErr = err
	})

	payload := map[string]string{
		"ajax":          "true",
		"tmpInqStrDt":   date,
		"pbldDvCd":      "3",
		"inqStrDt":      strings.ReplaceAll(date, "-", ""),
		"inqKindCd":     "1",
		"requestTarget": "searchContentDiv",
	}
	if err := c.Post(target, payload); err != nil && failErr == nil {
		failErr = err
	}
	c.Wait()

	if failErr != nil {
		return date, nil, fmt.Errorf("exchange rate: %w", failErr)
	}
	if !parsed {
		return date, nil, fmt.Errorf("exchange rate: no table in response (status %d)", status)
	}
	log.Printf("exchange rate %s: %d rows", date, len(records))
	return date, records, nil
}

// parseRateTable 将多级表头展开为单级列名，并在最前面插入 date 列
func parseRateTable(table *goquery.Selection, date string) []Record {
	headerRows := table.Find("thead tr")
	var bodyRows *goquery.Selection
	if headerRows.Length() == 0 {
		// 无 thead 时，将首个只含 th 的行视为表头
		all := table.Find("tr")
		headerRows = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("td").Length() == 0 && s.Find("th").Length() > 0
		})
		bodyRows = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("td").Length() > 0
		})
	} else {
		bodyRows = table.Find("tbody tr")
	}

	columns := flattenHeaders(expandRows(headerRows))

	var out []Record
	bodyRows.Each(func(_ int, tr *goquery.Selection) {
		cells := expandRows(tr)
		if len(cells) == 0 {
			return
		}
		row := Record{ExchangeRateKey: date}
		for i, v := range cells[0] {
			name := fmt.Sprintf("col_%d", i)
			if i < len(columns) && columns[i] != "" {
				name = columns[i]
			}
			row[name] = strings.TrimSpace(v)
		}
		out = append(out, row)
	})
	return out
}

// expandRows 按 colspan / rowspan 展开为规则网格
func expandRows(rows *goquery.Selection) [][]string {
	var grid [][]string
	pending := map[[2]int]string{}
	rows.Each(func(ri int, tr *goquery.Selection) {
		var line []string
		col := 0
		fill := func() {
			for {
				v, ok := pending[[2]int{ri, col}]
				if !ok {
					return
				}
				line = append(line, v)
				delete(pending, [2]int{ri, col})
				col++
			}
		}
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			fill()
			text := strings.Join(strings.Fields(cell.Text()), " ")
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			for k := 0; k < colspan; k++ {
				line = append(line, text)
				for r := 1; r < rowspan; r++ {
					pending[[2]int{ri + r, col}] = text
				}
				col++
			}
		})
		fill()
		grid = append(grid, line)
	})
	return grid
}

func spanAttr(s *goquery.Selection, attr string) int {
	v, ok := s.Attr(attr)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// flattenHeaders 各级表头相同则取一级；相邻各级都不同则全部拼接；否则取前两级
func flattenHeaders(levels [][]string) []string {
	if len(levels) == 0 {
		return nil
	}
	width := 0
	for _, l := range levels {
		if len(l) > width {
			width = len(l)
		}
	}
	cols := make([]string, width)
	for i := 0; i < width; i++ {
		var parts []string
		for _, l := range levels {
			v := ""
			if i < len(l) {
				v = l[i]
			}
			parts = append(parts, v)
		}
		cols[i] = joinLevels(parts)
	}
	return cols
}

func joinLevels(parts []string) string {
	// 只比较相邻两级
	allEqual, allDistinct := true, true
	for i := 1; i < len(parts); i++ {
		if parts[i] != parts[i-1] {
			allEqual = false
		} else {
			allDistinct = false
		}
	}
	var name string
	switch {
	case allEqual:
		name = parts[0]
	case allDistinct:
		name = strings.Join(parts, "_")
	default:
		n := 2
		if len(parts) < n {
			n = len(parts)
		}
		name = strings.Join(parts[:n], "_")
	}
	return strings.ReplaceAll(name, " ", "_")
}
