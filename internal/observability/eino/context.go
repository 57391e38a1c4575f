package eino

import (
	"context"
	"strings"
)

type llmCtxKey string

const llmCtxKeyProvider llmCtxKey = "llm_provider"

// WithProvider 在 Context 中标记当前 LLM 供应商，供全局回调读取
func WithProvider(ctx context.Context, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

// ProviderFromContext 读取 Context 中的供应商标记，缺失时返回 unknown
func ProviderFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	v := ctx.Value(llmCtxKeyProvider)
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}
