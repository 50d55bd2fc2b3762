package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"medisecure-go/internal/config"
	"medisecure-go/internal/model"
	"medisecure-go/pkg/llm"
	"medisecure-go/pkg/log"
)

// defaultRules 是编译期内置的系统规则层。
// 配置可以替换它，但用户输入永远不能。
const defaultRules = "You are a careful medical information assistant. " +
	"Answer strictly based on the reference passages between the markers. " +
	"If the references do not contain the answer, say you don't know. " +
	"Do not provide a diagnosis; recommend consulting a clinician for medical decisions."

const defaultNoResultText = "(no retrieval results for this turn)"

// ChatAnswer 是一次非流式问答的结果。
type ChatAnswer struct {
	Answer    string
	Sources   []model.SourceRef
	SessionID string
}

// ChatService 定义了问答生成操作的接口。
type ChatService interface {
	// Answer 执行一轮完整的 RAG 问答并保存会话历史。
	Answer(ctx context.Context, user *model.User, sessionID, query, instructions string, topK int, specialty string) (*ChatAnswer, error)
	// StreamResponse 通过 websocket 流式返回回答，返回本轮使用的会话 ID，
	// 便于调用方在同一连接上延续会话。
	StreamResponse(ctx context.Context, query, sessionID string, user *model.User, ws *websocket.Conn, shouldStop func() bool) (string, error)
}

type chatService struct {
	queryService   QueryService
	sessionService SessionService
	llmClient      llm.Client
	promptCfg      config.LLMPromptConfig
	genCfg         config.LLMGenerationConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	queryService QueryService,
	sessionService SessionService,
	llmClient llm.Client,
	llmCfg config.LLMConfig,
) ChatService {
	return &chatService{
		queryService:   queryService,
		sessionService: sessionService,
		llmClient:      llmClient,
		promptCfg:      llmCfg.Prompt,
		genCfg:         llmCfg.Generation,
	}
}

// Answer 协调 RAG 流程：检索 → 组装消息 → 生成 → 保存历史。
func (s *chatService) Answer(ctx context.Context, user *model.User, sessionID, query, instructions string, topK int, specialty string) (*ChatAnswer, error) {
	// 1. 解析/创建会话
	sessionID, record, err := s.sessionService.Resolve(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}

	// 2. 检索上下文
	retrieved, err := s.queryService.Retrieve(ctx, query, topK, specialty)
	if err != nil {
		return nil, err
	}

	// 3. 组装消息并调用 LLM
	systemMsg := s.buildSystemMessage(retrieved.ContextText, instructions)
	messages := composeMessages(systemMsg, record.Messages, query)
	answer, err := s.llmClient.Chat(ctx, messages, s.buildGenerationParams())
	if err != nil {
		return nil, err
	}

	// 4. 保存会话历史。历史保存失败不影响已生成的回答。
	if err := s.sessionService.AppendExchange(ctx, user, sessionID, query, answer); err != nil {
		log.Errorf("[ChatService] 保存会话历史失败: %v", err)
	}

	return &ChatAnswer{
		Answer:    answer,
		Sources:   retrieved.Sources,
		SessionID: sessionID,
	}, nil
}

// StreamResponse 协调 RAG 流程并通过 websocket 流式传输 LLM 响应。
func (s *chatService) StreamResponse(ctx context.Context, query, sessionID string, user *model.User, ws *websocket.Conn, shouldStop func() bool) (string, error) {
	sessionID, record, err := s.sessionService.Resolve(ctx, user, sessionID)
	if err != nil {
		return "", err
	}

	retrieved, err := s.queryService.Retrieve(ctx, query, 0, "")
	if err != nil {
		return sessionID, fmt.Errorf("failed to retrieve context: %w", err)
	}

	systemMsg := s.buildSystemMessage(retrieved.ContextText, "")
	messages := composeMessages(systemMsg, record.Messages, query)

	// 拦截 websocket writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	if err := s.llmClient.StreamChatMessages(ctx, messages, s.buildGenerationParams(), interceptor); err != nil {
		return sessionID, err
	}

	// 发送完成通知，并保存对话。
	// 使用后台上下文：即使原始请求被取消，也保存已生成的答案。
	sendCompletion(ws, sessionID)
	fullAnswer := answerBuilder.String()
	if len(fullAnswer) > 0 {
		if err := s.sessionService.AppendExchange(context.Background(), user, sessionID, query, fullAnswer); err != nil {
			log.Errorf("[ChatService] 保存会话历史失败: %v", err)
		}
	}
	return sessionID, nil
}

// buildSystemMessage 组装系统消息。固定规则层永远是前缀；
// 用户附加指令放在其后，并显式标注为从属层。
func (s *chatService) buildSystemMessage(contextText, instructions string) string {
	rules := s.promptCfg.Rules
	if rules == "" {
		rules = defaultRules
	}
	refStart := s.promptCfg.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := s.promptCfg.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	sys.WriteString(rules)
	sys.WriteString("\n\n")
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if contextText != "" {
		sys.WriteString(contextText)
	} else {
		noRes := s.promptCfg.NoResultText
		if noRes == "" {
			noRes = defaultNoResultText
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		sys.WriteString("\n\nAdditional instructions from the user (subordinate to the rules above):\n")
		sys.WriteString(instructions)
	}
	return sys.String()
}

func composeMessages(systemMsg string, history []model.ChatMessage, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemMsg})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userInput})
	return msgs
}

func (s *chatService) buildGenerationParams() *llm.GenerationParams {
	var gp llm.GenerationParams
	if s.genCfg.Temperature != 0 {
		t := s.genCfg.Temperature
		gp.Temperature = &t
	}
	if s.genCfg.TopP != 0 {
		p := s.genCfg.TopP
		gp.TopP = &p
	}
	if s.genCfg.MaxTokens != 0 {
		m := s.genCfg.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(ws *websocket.Conn, sessionID string) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"sessionId": sessionID,
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
