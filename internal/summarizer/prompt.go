package summarizer

import (
	"fmt"
	"strings"

	"github.com/LJTian/FinNews/internal/collector"
)

// PromptArticleLimit 只取前 20 条，避免提示词过长
const PromptArticleLimit = 20

const instructionBlock = `위 기사들을 바탕으로 다음 내용을 한국어로 정리해줘.

1) 전체 뉴스를 5~7줄 정도로 핵심만 요약
2) 주요 이슈/논점이 무엇인지 정리
3) 전반적인 분위기(긍정/부정/중립)를 한 줄로 평가
4) 추가로 눈에 띄는 서브 이슈가 있다면 2~3개 정도 bullet로 정리
5) 수집된 기사와 키워드의 주가를 분석해서 향후 주가에 미칠 영향 알려줘`

// NoNewsMessage 没有新闻时直接返回给用户的文案，不调用 API
func NoNewsMessage(keyword string) string {
	return fmt.Sprintf("'%s' 키워드로 수집된 뉴스가 없습니다.", keyword)
}

// BuildPrompt 按编号列出前 20 条新闻的标题、摘要、链接
func BuildPrompt(keyword string, records []collector.Record) string {
	if len(records) > PromptArticleLimit {
		records = records[:PromptArticleLimit]
	}
	lines := make([]string, 0, len(records))
	for i, r := range records {
		lines = append(lines, fmt.Sprintf("%d. 제목: %s\n   요약: %s\n   링크: %s", i+1, r["title"], r["description"], r["link"]))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n다음은 '%s' 키워드로 수집한 네이버 뉴스 목록입니다.\n\n", keyword)
	sb.WriteString(strings.Join(lines, "\n\n"))
	sb.WriteString("\n\n")
	sb.WriteString(instructionBlock)
	sb.WriteString("\n")
	return sb.String()
}
