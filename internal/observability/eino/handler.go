package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fin-research-api/pkg/metrics"
)

// startTimeKey 用于在 Context 中存储调用开始时间
// 这样可以在 OnEnd/OnError 时计算总耗时
type startTimeKey struct{}

// newChatModelCallbackHandler 创建大模型调用的回调处理器
//
// 每次模型生成内容时触发，记录：
//   - 调用次数（成功/失败）
//   - 耗时
//   - Token 消耗
//   - 分布式追踪信息
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{
				attribute.String("llm.provider", ProviderFromContext(ctx)),
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			provider := ProviderFromContext(ctx)
			modelName := modelNameFromOutput(output)

			metrics.LLMRequestTotal.WithLabelValues(provider, modelName, "ok").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMRequestDuration.WithLabelValues(provider, modelName).Observe(d)
			}
			if output != nil && output.TokenUsage != nil {
				metrics.LLMTokensTotal.WithLabelValues(provider, modelName, "prompt").Add(float64(output.TokenUsage.PromptTokens))
				metrics.LLMTokensTotal.WithLabelValues(provider, modelName, "completion").Add(float64(output.TokenUsage.CompletionTokens))
			}

			span := trace.SpanFromContext(ctx)
			if span != nil {
				if output != nil && output.TokenUsage != nil {
					span.SetAttributes(
						attribute.Int("llm.prompt_tokens", output.TokenUsage.PromptTokens),
						attribute.Int("llm.completion_tokens", output.TokenUsage.CompletionTokens),
					)
				}
				span.End()
			}
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			provider := ProviderFromContext(ctx)
			modelName := ""
			if info != nil {
				modelName = info.Type
			}

			metrics.LLMRequestTotal.WithLabelValues(provider, modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMRequestDuration.WithLabelValues(provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
			}
			return ctx
		},
	}
}

// newEmbeddingCallbackHandler 创建向量化调用的回调处理器
//
// 每次生成向量时触发，记录调用耗时与 Token 消耗
func newEmbeddingCallbackHandler() *cbtemplate.EmbeddingCallbackHandler {
	return &cbtemplate.EmbeddingCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *embedding.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			texts := 0
			modelName := ""
			if input != nil {
				texts = len(input.Texts)
				if input.Config != nil {
					modelName = input.Config.Model
				}
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.embed",
				trace.WithAttributes(
					attribute.String("llm.provider", ProviderFromContext(ctx)),
					attribute.String("llm.model", modelName),
					attribute.Int("embedding.texts", texts),
				),
			)
			return ctx
		},

		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *embedding.CallbackOutput) context.Context {
			provider := ProviderFromContext(ctx)
			modelName := ""
			if output != nil && output.Config != nil {
				modelName = output.Config.Model
			}

			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMRequestDuration.WithLabelValues(provider, modelName).Observe(d)
			}
			if output != nil && output.TokenUsage != nil {
				metrics.LLMTokensTotal.WithLabelValues(provider, modelName, "embedding").Add(float64(output.TokenUsage.PromptTokens))
			}

			span := trace.SpanFromContext(ctx)
			if span != nil {
				span.End()
			}
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			span := trace.SpanFromContext(ctx)
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
			}
			return ctx
		},
	}
}

// elapsedSeconds 计算从 OnStart 到当前的耗时（秒），取不到开始时间时返回 0
func elapsedSeconds(ctx context.Context) float64 {
	v := ctx.Value(startTimeKey{})
	start, ok := v.(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

// modelNameFromInput 从输入配置中提取模型名称
func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

// modelNameFromOutput 从输出配置中提取模型名称
func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
