package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/wikichat/internal/tlsutil"
	"github.com/BaSui01/wikichat/llm/retry"
	"github.com/BaSui01/wikichat/types"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultUserAgent 模拟桌面浏览器，Wikipedia 会拒绝空 UA。
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// 段落清洗后至少需要超过该字符数才会保留
const minParagraphChars = 20

// maxPageBytes 限制单个页面的读取大小
const maxPageBytes = 8 << 20

var (
	citationPattern   = regexp.MustCompile(`\[\d+\]`)
	// 含 NBSP (U+00A0) 等 Unicode 空白；RE2 的 \s 只匹配 ASCII
	whitespacePattern = regexp.MustCompile(`[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+`)
)

// WikipediaConfig 配置 Wikipedia 抓取器.
type WikipediaConfig struct {
	UserAgent  string        `json:"user_agent"`  // 请求 User-Agent
	Timeout    time.Duration `json:"timeout"`     // HTTP 请求超时
	RetryCount int           `json:"retry_count"` // 瞬时错误的重试次数
	RetryDelay time.Duration `json:"retry_delay"` // 初始重试间隔
}

// DefaultWikipediaConfig 返回抓取的默认配置.
func DefaultWikipediaConfig() WikipediaConfig {
	return WikipediaConfig{
		UserAgent:  DefaultUserAgent,
		Timeout:    30 * time.Second,
		RetryCount: 2,
		RetryDelay: time.Second,
	}
}

// WikiPage 是一次抓取的结果.
type WikiPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	HasInfobox bool   `json:"has_infobox"`
}

// Metadata 返回写入向量库的页面元数据.
func (p *WikiPage) Metadata() map[string]any {
	return map[string]any{
		"source":      "wikipedia",
		"url":         p.URL,
		"title":       p.Title,
		"has_infobox": p.HasInfobox,
	}
}

// WikipediaScraper 抓取并清洗单个 Wikipedia 词条.
type WikipediaScraper struct {
	config  WikipediaConfig
	client  *http.Client
	retryer retry.Retryer
	logger  *zap.Logger
}

// NewWikipediaScraper 创建抓取器.
func NewWikipediaScraper(config WikipediaConfig, logger *zap.Logger) *WikipediaScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultWikipediaConfig()
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}
	logger = logger.With(zap.String("component", "wikipedia_scraper"))

	policy := &retry.RetryPolicy{
		MaxRetries:   config.RetryCount,
		InitialDelay: config.RetryDelay,
		MaxDelay:     10 * config.RetryDelay,
		Multiplier:   2.0,
		Jitter:       true,
		// 只有 WrapRetryable 包装过的错误才重试
		ShouldRetry: func(error) bool { return false },
	}

	return &WikipediaScraper{
		config: config,
		client: tlsutil.NewClient(config.Timeout, map[string]string{
			"User-Agent": config.UserAgent,
			"Accept":     "text/html,application/xhtml+xml",
		}),
		retryer: retry.NewBackoffRetryer(policy, logger),
		logger:  logger,
	}
}

// Name 返回数据源名称.
func (w *WikipediaScraper) Name() string { return "wikipedia" }

// Scrape 下载并解析词条页面.
func (w *WikipediaScraper) Scrape(ctx context.Context, pageURL string) (*WikiPage, error) {
	w.logger.Info("scraping wikipedia page", zap.String("url", pageURL))

	body, err := retry.Value(ctx, w.retryer, func() ([]byte, error) {
		return w.fetch(ctx, pageURL)
	})
	if err != nil {
		return nil, types.NewError(types.ErrScrapeFailed, fmt.Sprintf("fetch %s failed", pageURL)).
			WithCause(err).
			WithHTTPStatus(http.StatusBadGateway)
	}

	page, err := ParseWikipediaHTML(bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrScrapeFailed, fmt.Sprintf("parse %s failed", pageURL)).
			WithCause(err).
			WithHTTPStatus(http.StatusUnprocessableEntity)
	}
	page.URL = pageURL

	w.logger.Info("wikipedia page scraped",
		zap.String("title", page.Title),
		zap.Int("content_chars", utf8.RuneCountInString(page.Content)),
		zap.Bool("has_infobox", page.HasInfobox))

	return page, nil
}

func (w *WikipediaScraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.WrapRetryable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		statusErr := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, retry.WrapRetryable(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, retry.WrapRetryable(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// ParseWikipediaHTML 从词条 HTML 中提取标题、正文段落与 infobox 标记.
// 缺少 h1.firstHeading 或 div.mw-parser-output 时返回错误.
func ParseWikipediaHTML(r io.Reader) (*WikiPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	heading := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.H1 && hasClass(n, "firstHeading")
	})
	if heading == nil {
		return nil, fmt.Errorf("page title (h1.firstHeading) not found")
	}

	contentDiv := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, "mw-parser-output")
	})
	if contentDiv == nil {
		return nil, fmt.Errorf("content container (div.mw-parser-output) not found")
	}

	var paragraphs []string
	walk(contentDiv, func(n *html.Node) bool {
		if n.DataAtom != atom.P {
			return true
		}
		if text := CleanParagraph(textContent(n)); utf8.RuneCountInString(text) > minParagraphChars {
			paragraphs = append(paragraphs, text)
		}
		// 嵌套的 <p> 已包含在父段落文本中
		return false
	})

	infobox := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Table && hasClass(n, "infobox")
	})

	return &WikiPage{
		Title:      strings.TrimSpace(textContent(heading)),
		Content:    strings.Join(paragraphs, "\n\n"),
		HasInfobox: infobox != nil,
	}, nil
}

// CleanParagraph 去掉 [12] 形式的引用标记并压缩空白.
func CleanParagraph(text string) string {
	text = citationPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// walk 深度优先遍历，visit 返回 false 时不再进入子节点
func walk(n *html.Node, visit func(*html.Node) bool) {
	if n.Type == html.ElementNode && !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
