package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	naverNewsURL            = "https://openapi.naver.com/v1/search/news"
	naverMaxResponseBytes   = 2 << 20 // 2MB，100 条新闻远小于此
	naverClientTimeout      = 10 * time.Second
	naverClientIDHeader     = "X-Naver-Client-Id"
	naverClientSecretHeader = "X-Naver-Client-Secret"
)

// NewsFields 需要清洗的新闻自由文本字段
var NewsFields = []string{"title", "description"}

// NaverNewsSource 通过 Naver 开放 API 搜索新闻，每次调用返回一页
type NaverNewsSource struct {
	ClientID     string
	ClientSecret string
	// BaseURL 为空时使用官方地址，测试中指向 httptest
	BaseURL    string
	HTTPClient *http.Client
}

func NewNaverNewsSource(clientID, clientSecret string) (*NaverNewsSource, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	return &NaverNewsSource{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: naverClientTimeout},
	}, nil
}

func (n *NaverNewsSource) Name() string {
	return "naver_news"
}

type naverResp struct {
	LastBuildDate string `json:"lastBuildDate"`
	Total         int    `json:"total"`
	Start         int    `json:"start"`
	Display       int    `json:"display"`
	Items         []struct {
		Title        string `json:"title"`
		OriginalLink string `json:"originallink"`
		Link         string `json:"link"`
		Description  string `json:"description"`
		PubDate      string `json:"pubDate"`
	} `json:"items"`
}

func naverSort(s SortOrder) string {
	if s == SortRelevance {
		return "sim"
	}
	return "date"
}

func (n *NaverNewsSource) FetchPage(ctx context.Context, q SearchQuery, offset int) (ResultPage, error) {
	if n.ClientID == "" || n.ClientSecret == "" {
		return ResultPage{}, ErrMissingCredentials
	}
	base := n.BaseURL
	if base == "" {
		base = naverNewsURL
	}
	params := url.Values{
		"query":   {q.Keyword},
		"display": {strconv.Itoa(q.PageSize)},
		"start":   {strconv.Itoa(offset)},
		"sort":    {naverSort(q.Sort)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return ResultPage{}, err
	}
	req.Header.Set(naverClientIDHeader, n.ClientID)
	req.Header.Set(naverClientSecretHeader, n.ClientSecret)

	client := n.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: naverClientTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return ResultPage{}, fmt.Errorf("naver: request start=%d: %w", offset, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, naverMaxResponseBytes))
	if err != nil {
		return ResultPage{}, fmt.Errorf("naver: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ResultPage{}, &UpstreamError{Source: n.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var data naverResp
	if err := json.Unmarshal(body, &data); err != nil {
		return ResultPage{}, fmt.Errorf("naver: unmarshal start=%d: %w", offset, err)
	}

	page := ResultPage{
		Items:          make([]Record, 0, len(data.Items)),
		TotalAvailable: data.Total,
		StartOffset:    offset,
	}
	for _, it := range data.Items {
		page.Items = append(page.Items, Record{
			"keyword":      q.Keyword,
			"title":        it.Title,
			"description":  it.Description,
			"link":         it.Link,
			"originallink": it.OriginalLink,
			"pub_date":     it.PubDate,
		})
	}
	return page, nil
}
