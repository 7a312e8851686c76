package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/model"
	"zhiwen-go/internal/repository"
	"zhiwen-go/pkg/llm"
	"zhiwen-go/pkg/log"

	"github.com/google/uuid"
)

const defaultNoResultText = "知识库中没有找到与问题相关的资料。"

// 未配置提示词规则时使用的默认系统提示。
const defaultPromptRules = `你是一个基于知识库的问答助手。请只根据下方提供的资料回答用户问题。
引用资料时，必须在相应句子末尾使用资料自带的引用标记，原样输出，不要改写标记格式。
如果资料不足以回答问题，请明确说明，不要编造内容。`

// ChatService 定义了检索增强问答的业务接口。
type ChatService interface {
	// Answer 对问题做检索增强问答。conversationID 为空时开启新会话；
	// documentID 非空时把检索范围限定在该文档内。
	Answer(ctx context.Context, conversationID, question, documentID string) (model.AnswerResult, error)
	// History 返回会话的历史消息。
	History(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
}

type chatService struct {
	searchService SearchService
	llmClient     llm.Client
	convRepo      repository.ConversationRepository
	builder       *citationBuilder
	cfg           config.LLMConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	searchService SearchService,
	llmClient llm.Client,
	convRepo repository.ConversationRepository,
	cfg config.LLMConfig,
) ChatService {
	return &chatService{
		searchService: searchService,
		llmClient:     llmClient,
		convRepo:      convRepo,
		builder:       newCitationBuilder(cfg.Prompt.RefStart, cfg.Prompt.RefEnd),
		cfg:           cfg,
	}
}

// Answer 的主流程：检索 -> 组装提示词 -> 生成 -> 修复引用 -> 持久化会话。
func (s *chatService) Answer(ctx context.Context, conversationID, question, documentID string) (model.AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return model.AnswerResult{}, fmt.Errorf("问题不能为空")
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	chunks, err := s.searchService.Retrieve(ctx, question, documentID, 0)
	if err != nil {
		return model.AnswerResult{}, err
	}

	userMsg := model.ChatMessage{Role: "user", Content: question, Timestamp: time.Now()}

	// 检索不到资料时不调用模型，直接返回固定话术
	if len(chunks) == 0 {
		noResult := s.cfg.Prompt.NoResultText
		if noResult == "" {
			noResult = defaultNoResultText
		}
		assistantMsg := model.ChatMessage{Role: "assistant", Content: noResult, Timestamp: time.Now()}
		if err := s.convRepo.AppendMessages(ctx, conversationID, userMsg, assistantMsg); err != nil {
			log.Errorf("保存会话 %s 历史失败: %v", conversationID, err)
		}
		return model.AnswerResult{
			ConversationID: conversationID,
			Answer:         noResult,
			Citations:      []model.Citation{},
		}, nil
	}

	candidates := s.builder.build(conversationID, chunks)

	history, err := s.convRepo.GetHistory(ctx, conversationID)
	if err != nil {
		log.Errorf("读取会话 %s 历史失败: %v", conversationID, err)
		history = nil
	}

	messages := s.buildMessages(question, chunks, history)
	// 生成参数传 nil，由客户端回落到配置中的非零值
	raw, err := s.llmClient.Complete(ctx, messages, nil)
	if err != nil {
		return model.AnswerResult{}, err
	}

	answer, citations := s.builder.repair(raw, candidates)
	if citations == nil {
		citations = []model.Citation{}
	}

	assistantMsg := model.ChatMessage{
		Role:      "assistant",
		Content:   answer,
		Citations: citations,
		Timestamp: time.Now(),
	}
	if err := s.convRepo.AppendMessages(ctx, conversationID, userMsg, assistantMsg); err != nil {
		log.Errorf("保存会话 %s 历史失败: %v", conversationID, err)
	}

	return model.AnswerResult{
		ConversationID: conversationID,
		Answer:         answer,
		Citations:      citations,
	}, nil
}

// History 返回会话历史。
func (s *chatService) History(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	return s.convRepo.GetHistory(ctx, conversationID)
}

// buildMessages 组装发给模型的消息序列：系统提示（规则 + 编号资料）、
// 截断后的历史对话、当前问题。
func (s *chatService) buildMessages(question string, chunks []model.RetrievedChunk, history []model.ChatMessage) []llm.Message {
	rules := s.cfg.Prompt.Rules
	if rules == "" {
		rules = defaultPromptRules
	}

	var sb strings.Builder
	sb.WriteString(rules)
	sb.WriteString("\n\n资料：\n")
	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("%s 《%s》\n%s\n\n", s.builder.marker(i), chunk.DocumentTitle, chunk.Content))
	}

	messages := []llm.Message{{Role: "system", Content: sb.String()}}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}
