package entity

import (
	"time"
)

// CollectedData 数据收集阶段的聚合结果
// 收集过程中增量填充，收集完成后只读
type CollectedData struct {
	MarketData          []MarketData      `json:"market_data,omitempty"`
	NewsItems           []NewsItem        `json:"news_items,omitempty"`
	Filings             []Filing          `json:"filings,omitempty"`
	RawData             map[string]string `json:"raw_data,omitempty"`
	Sources             []string          `json:"sources,omitempty"`
	CollectionTimestamp time.Time         `json:"collection_timestamp"`
}

// NewCollectedData 创建空的收集结果
func NewCollectedData() *CollectedData {
	return &CollectedData{
		RawData:             make(map[string]string),
		CollectionTimestamp: time.Now().UTC(),
	}
}

// HasSource 检查来源是否已记录
func (c *CollectedData) HasSource(name string) bool {
	for _, s := range c.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// AddSource 记录贡献数据的来源，重复追加会被忽略
func (c *CollectedData) AddSource(name string) {
	if !c.HasSource(name) {
		c.Sources = append(c.Sources, name)
	}
}

// IsEmpty 检查是否未收集到任何数据
func (c *CollectedData) IsEmpty() bool {
	return len(c.MarketData) == 0 && len(c.NewsItems) == 0 &&
		len(c.Filings) == 0 && len(c.RawData) == 0
}
