package observability

import (
	"strings"
	"sync"
)

// ModelPrice 模型单价（USD / 1K tokens）
type ModelPrice struct {
	Model       string
	PriceInput  float64
	PriceOutput float64
}

// CostCalculator 按模型名计价。OpenAI 兼容端点只有一个服务商，价格表只按模型区分；
// 带日期后缀的快照（gpt-4o-mini-2024-07-18）按最长前缀匹配基础模型。
type CostCalculator struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice
}

// NewCostCalculator 创建带默认价格表的计算器
func NewCostCalculator() *CostCalculator {
	c := &CostCalculator{prices: make(map[string]ModelPrice)}
	for _, p := range []ModelPrice{
		{Model: "gpt-3.5-turbo", PriceInput: 0.0005, PriceOutput: 0.0015},
		{Model: "gpt-4o", PriceInput: 0.005, PriceOutput: 0.015},
		{Model: "gpt-4o-mini", PriceInput: 0.00015, PriceOutput: 0.0006},
		{Model: "gpt-4.1-mini", PriceInput: 0.0004, PriceOutput: 0.0016},
	} {
		c.prices[p.Model] = p
	}
	return c
}

// SetPrice 设置或覆盖模型价格
func (c *CostCalculator) SetPrice(model string, priceInput, priceOutput float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[model] = ModelPrice{Model: model, PriceInput: priceInput, PriceOutput: priceOutput}
}

// Price 返回模型价格，未知模型返回 false
func (c *CostCalculator) Price(model string) (ModelPrice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.prices[model]; ok {
		return p, true
	}
	var best ModelPrice
	found := false
	for name, p := range c.prices {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best.Model) {
			best, found = p, true
		}
	}
	return best, found
}

// Calculate 计算一次调用的成本，未知模型计为 0
func (c *CostCalculator) Calculate(model string, tokensInput, tokensOutput int) float64 {
	p, ok := c.Price(model)
	if !ok {
		return 0
	}
	return float64(tokensInput)/1000*p.PriceInput + float64(tokensOutput)/1000*p.PriceOutput
}

// PurposeUsage 单一用途（relevance / summary）的累计用量
type PurposeUsage struct {
	Requests     int
	TokensInput  int
	TokensOutput int
	Cost         float64
}

// CostSummary 成本汇总
type CostSummary struct {
	TotalCost       float64
	TotalTokens     int
	TokensInput     int
	TokensOutput    int
	RequestCount    int
	AvgCostPerReq   float64
	AvgTokensPerReq float64
	ByPurpose       map[string]PurposeUsage
}

// CostTracker 进程级成本累计，serve 退出时输出汇总
type CostTracker struct {
	calculator *CostCalculator

	mu        sync.Mutex
	total     PurposeUsage
	byPurpose map[string]PurposeUsage
}

// NewCostTracker 创建成本追踪器
func NewCostTracker(calculator *CostCalculator) *CostTracker {
	if calculator == nil {
		calculator = NewCostCalculator()
	}
	return &CostTracker{calculator: calculator, byPurpose: make(map[string]PurposeUsage)}
}

// Track 记录一次调用并返回其成本
func (t *CostTracker) Track(purpose, model string, tokensInput, tokensOutput int) float64 {
	cost := t.calculator.Calculate(model, tokensInput, tokensOutput)

	t.mu.Lock()
	defer t.mu.Unlock()

	add := func(u PurposeUsage) PurposeUsage {
		u.Requests++
		u.TokensInput += tokensInput
		u.TokensOutput += tokensOutput
		u.Cost += cost
		return u
	}
	t.total = add(t.total)
	t.byPurpose[purpose] = add(t.byPurpose[purpose])
	return cost
}

// Summary 返回当前汇总的快照
func (t *CostTracker) Summary() CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := CostSummary{
		TotalCost:    t.total.Cost,
		TokensInput:  t.total.TokensInput,
		TokensOutput: t.total.TokensOutput,
		TotalTokens:  t.total.TokensInput + t.total.TokensOutput,
		RequestCount: t.total.Requests,
		ByPurpose:    make(map[string]PurposeUsage, len(t.byPurpose)),
	}
	if s.RequestCount > 0 {
		s.AvgCostPerReq = s.TotalCost / float64(s.RequestCount)
		s.AvgTokensPerReq = float64(s.TotalTokens) / float64(s.RequestCount)
	}
	for k, v := range t.byPurpose {
		s.ByPurpose[k] = v
	}
	return s
}

// Reset 清空统计
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = PurposeUsage{}
	t.byPurpose = make(map[string]PurposeUsage)
}
