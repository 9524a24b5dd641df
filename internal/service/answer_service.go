package service

import (
	"context"
	"fmt"
	"strings"

	"stu-insight-go/internal/config"
	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/llm"
	"stu-insight-go/pkg/log"
)

// 未配置文案时使用的内置默认值。
const (
	defaultAnswerRules = `You are a helpful academic records assistant answering questions about a student's achievements.
Answer ONLY from the provided context passages. Do not use outside knowledge and do not invent
achievements, dates, credits or approvers that are not in the context. If the context does not
contain the answer, say so plainly. Keep the tone factual and concise, like a registrar's office.`
	defaultNoResultText = "I could not find any achievement records for that student."
)

// AnswerService 把检索到的文本单元组织成上下文，让模型在其中作答。
// 没有可用上下文时直接返回固定文案，不浪费一次模型调用。
type AnswerService interface {
	Summarize(ctx context.Context, query, ownerRef string, units []model.RetrievedUnit) (string, error)
}

type answerService struct {
	llmClient llm.Client
	cfg       config.LLMConfig
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(llmClient llm.Client, cfg config.LLMConfig) AnswerService {
	return &answerService{llmClient: llmClient, cfg: cfg}
}

// Summarize 以编号上下文 + 回答规则调用模型生成画像摘要。
func (s *answerService) Summarize(ctx context.Context, query, ownerRef string, units []model.RetrievedUnit) (string, error) {
	if len(units) == 0 {
		log.Infof("[AnswerService] owner '%s' 没有上下文, 返回固定文案", ownerRef)
		return s.noResultText(), nil
	}

	rules := s.cfg.Prompt.Rules
	if strings.TrimSpace(rules) == "" {
		rules = defaultAnswerRules
	}

	var b strings.Builder
	b.WriteString("Context passages about the student:\n\n")
	for i, unit := range units {
		b.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, unit.Doc.TextContent))
	}
	b.WriteString(fmt.Sprintf("Question: %s", query))

	messages := []llm.Message{
		{Role: "system", Content: rules},
		{Role: "user", Content: b.String()},
	}

	log.Infof("[AnswerService] 调用模型生成摘要, owner: %s, 上下文单元数: %d", ownerRef, len(units))
	answer, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (s *answerService) noResultText() string {
	if strings.TrimSpace(s.cfg.Prompt.NoResultText) != "" {
		return s.cfg.Prompt.NoResultText
	}
	return defaultNoResultText
}
