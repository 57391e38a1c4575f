package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	einoobs "fin-research-api/internal/observability/eino"
)

var tracer = otel.Tracer("llm")

// Completer 对话补全客户端，封装单轮 system + user 调用
type Completer struct {
	factory  *EinoFactory
	provider string
}

// NewCompleter 创建补全客户端
// provider 为空时使用默认供应商
func NewCompleter(factory *EinoFactory, provider string) *Completer {
	if provider == "" && factory != nil && factory.config != nil {
		provider = factory.config.DefaultProvider
	}
	return &Completer{factory: factory, provider: provider}
}

// Complete 执行单轮补全，返回模型原始文本输出
// 指标与 token 统计由全局 Eino 回调上报
func (c *Completer) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}

	ctx, span := tracer.Start(ctx, "llm.Complete",
		trace.WithAttributes(attribute.String("llm.provider", c.provider)))
	defer span.End()

	chatModel, err := c.factory.Get(ctx, c.provider)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userMessage),
	}

	out, err := chatModel.Generate(einoobs.WithProvider(ctx, c.provider), messages)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	span.SetAttributes(attribute.Int("llm.output_chars", len(out.Content)))
	return out.Content, nil
}
