// =============================================================================
// 📄 Wikipedia 测试数据
// =============================================================================
// 提供词条 HTML、抓取结果与检索文档样例
//
// 使用方法:
//
//	srv := httptest.NewServer(fixtures.WikiHandler())
//	page := fixtures.SamplePage(srv.URL)
//
// =============================================================================
package fixtures

import (
	"net/http"
	"strings"

	"github.com/BaSui01/wikichat/rag/sources"
)

// =============================================================================
// 🎯 词条内容
// =============================================================================

// SampleTitle 样例词条标题
const SampleTitle = "Sai Sai Kham Leng"

// SampleParagraphs 样例正文段落，每段均超过抓取器的最短段落长度
var SampleParagraphs = []string{
	"Sai Sai Kham Leng is a Myanmar hip hop singer, songwriter, actor and entertainer of Shan descent.",
	"He released his debut album Lin Lin Lat Lat in 2000 and went on to become one of the best selling artists in the country.",
	"Beyond music he has appeared in many films, including comedies and dramas produced in Yangon.",
	"He is also known for philanthropy and for hosting concerts that raise funds for education programs.",
}

// SampleContent 样例正文，段落以空行分隔
func SampleContent() string {
	return strings.Join(SampleParagraphs, "\n\n")
}

// SampleHTML 返回样例词条 HTML，段落中带有引用标记
func SampleHTML() string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><title>` + SampleTitle + ` - Wikipedia</title></head><body>`)
	b.WriteString(`<h1 id="firstHeading" class="firstHeading"><span class="mw-page-title-main">` + SampleTitle + `</span></h1>`)
	b.WriteString(`<div id="mw-content-text"><div class="mw-parser-output">`)
	b.WriteString(`<table class="infobox vcard"><tr><th>Born</th><td>10 April 1979</td></tr></table>`)
	for i, p := range SampleParagraphs {
		b.WriteString("<p>" + p)
		if i%2 == 0 {
			b.WriteString(`<sup class="reference">[1]</sup>`)
		}
		b.WriteString("</p>")
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

// WikiHandler 返回固定样例词条的 HTTP handler
func WikiHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(SampleHTML()))
	})
}

// SamplePage 返回与 SampleHTML 对应的抓取结果
func SamplePage(url string) *sources.WikiPage {
	return &sources.WikiPage{
		URL:        url,
		Title:      SampleTitle,
		Content:    SampleContent(),
		HasInfobox: true,
	}
}

// =============================================================================
// 🔍 检索文档
// =============================================================================

// SearchDocuments 返回用于摘要测试的检索文档
func SearchDocuments() []string {
	return []string{
		SampleParagraphs[1],
		SampleParagraphs[2],
		SampleParagraphs[0],
		SampleParagraphs[3],
	}
}
