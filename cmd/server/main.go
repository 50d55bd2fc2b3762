// Package main 是应用程序的入口点。
package main

import (
	"context"
	"crypto/md5"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"medisecure-go/internal/config"
	"medisecure-go/internal/handler"
	"medisecure-go/internal/ingest"
	"medisecure-go/internal/middleware"
	"medisecure-go/internal/model"
	"medisecure-go/internal/pipeline"
	"medisecure-go/internal/repository"
	"medisecure-go/internal/service"
	"medisecure-go/pkg/database"
	"medisecure-go/pkg/embedding"
	"medisecure-go/pkg/index"
	"medisecure-go/pkg/kafka"
	"medisecure-go/pkg/llm"
	"medisecure-go/pkg/log"
	"medisecure-go/pkg/rerank"
	"medisecure-go/pkg/storage"
	"medisecure-go/pkg/tasks"
	"medisecure-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 加载配置（密钥缺失会直接拒绝启动）
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施连接
	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}

	// MySQL 可选：DSN 为空时用户走内存存储，分块不落库
	var userRepo repository.UserRepository
	var chunkRepo repository.ChunkRepository
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Fatalf("MySQL 连接失败: %v", err)
		}
		if err := db.AutoMigrate(&model.User{}, &model.ChunkRecord{}); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}
		userRepo = repository.NewUserRepository(db)
		chunkRepo = repository.NewChunkRepository(db)
	} else {
		log.Warn("未配置 MySQL DSN，使用内存用户存储（仅用于本地开发）")
		userRepo = repository.NewMemoryUserRepository()
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}

	// 向量索引后端由配置选择
	var vectorIndex index.Index
	switch cfg.VectorStore.Type {
	case "pgvector":
		vectorIndex, err = index.NewPG(context.Background(), cfg.VectorStore.Postgres, cfg.Embedding.Dimensions)
	default:
		vectorIndex, err = index.NewES(cfg.VectorStore.Elasticsearch, cfg.Embedding.Dimensions)
	}
	if err != nil {
		log.Fatalf("向量索引初始化失败: %v", err)
	}
	if err := vectorIndex.Ensure(context.Background()); err != nil {
		log.Fatalf("向量索引建表/建映射失败: %v", err)
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化上游客户端
	jwtManager, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	if err != nil {
		log.Fatalf("JWT 初始化失败: %v", err)
	}
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	var reranker rerank.Reranker = rerank.Identity{}
	if cfg.Rerank.Enabled {
		reranker = rerank.NewClient(cfg.Rerank)
	}

	// 5. 初始化 Repository 与 Service（依赖注入）
	sessionRepo := repository.NewSessionRepository(rdb, cfg.Session.TTLHours)
	queryCache := repository.NewQueryCacheRepository(rdb, cfg.Retrieval.CacheTTLSeconds)

	userService := service.NewUserService(userRepo, jwtManager, rdb)
	sessionService := service.NewSessionService(sessionRepo, cfg.Session.MaxMessages)
	queryService := service.NewQueryService(embeddingClient, vectorIndex, reranker, queryCache, cfg.Retrieval)
	chatService := service.NewChatService(queryService, sessionService, llmClient, cfg.LLM)
	feedbackService := service.NewFeedbackService(cfg.Feedback.Dir)
	adminService := service.NewAdminService(storageClient, producer, vectorIndex, chunkRepo, sessionRepo)

	// 6. 初始化索引管道 (Processor)
	chunker := ingest.NewChunker(cfg.Chunking)
	processor := pipeline.NewProcessor(storageClient, embeddingClient, vectorIndex, chunkRepo, chunker, cfg.Embedding)

	// 7. 启动后台 Kafka 消费者
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, rdb, processor)

	// 7.1 启动时导入本地语料目录（幂等：按内容 MD5 跳过已有对象）
	if cfg.Corpus.SeedDir != "" {
		go seedCorpus(consumerCtx, cfg.Corpus.SeedDir, storageClient, producer)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	userHandler := handler.NewUserHandler(userService)
	authHandler := handler.NewAuthHandler(userService)
	queryHandler := handler.NewQueryHandler(chatService, queryService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService)
	adminHandler := handler.NewAdminHandler(adminService)
	chatHandler := handler.NewChatHandler(chatService, userService, jwtManager)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
			auth.POST("/refreshToken", authHandler.RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService, rdb))
			{
				authed.GET("/me", userHandler.Profile)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		// 问答与检索路由组，需要认证；问答接口额外限流
		authed := apiV1.Group("/")
		authed.Use(middleware.AuthMiddleware(jwtManager, userService, rdb))
		{
			query := authed.Group("/")
			if cfg.RateLimit.Enabled {
				query.Use(middleware.RateLimit(rdb, cfg.RateLimit))
			}
			query.POST("/query", queryHandler.Query)

			authed.GET("/search", queryHandler.Search)
			authed.GET("/sessions/:id/messages", sessionHandler.GetMessages)
			authed.DELETE("/sessions/:id/messages", sessionHandler.ClearMessages)
			authed.POST("/feedback", feedbackHandler.Submit)
		}

		// Chat 路由 (WebSocket)
		chatGroup := apiV1.Group("/chat")
		{
			chatGroup.GET("/websocket-token", chatHandler.GetWebsocketStopToken)
		}

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(middleware.AuthMiddleware(jwtManager, userService, rdb), middleware.AdminAuthMiddleware())
		{
			admin.POST("/reindex", adminHandler.Reindex)
			admin.GET("/stats", adminHandler.Stats)
		}
	}
	r.GET("/chat/:token", chatHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	cancelConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// seedCorpus 扫描本地目录，将语料文件上传到 MinIO 并投递索引任务。
// 幂等：对象已存在且内容 MD5 一致时跳过。
func seedCorpus(ctx context.Context, dir string, storageClient *storage.Client, producer *kafka.Producer) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("seedCorpus: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		select {
		case <-ctx.Done():
			return filepath.SkipAll
		default:
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("seedCorpus: 读取文件失败: %s, err=%v", path, err)
			return nil
		}
		if len(data) == 0 {
			log.Infof("seedCorpus: 空文件跳过: %s", path)
			return nil
		}
		fileMD5 := fmt.Sprintf("%x", md5.Sum(data))
		objectName := info.Name()

		// 幂等检查：同名对象且 ETag 一致则跳过
		if stat, serr := storageClient.StatObject(ctx, objectName); serr == nil && stat.ETag == fileMD5 {
			log.Infof("seedCorpus: 已存在，跳过: %s (md5=%s)", objectName, fileMD5)
			return nil
		}

		contentType := "text/plain"
		if filepath.Ext(objectName) == ".csv" {
			contentType = "text/csv"
		}
		if err := storageClient.PutObject(ctx, objectName, data, contentType); err != nil {
			log.Warnf("seedCorpus: 上传失败: %s, err=%v", objectName, err)
			return nil
		}

		task := tasks.IndexingTask{ObjectName: objectName, ObjectMD5: fileMD5}
		if err := producer.ProduceIndexingTask(ctx, task); err != nil {
			log.Warnf("seedCorpus: 投递索引任务失败: %s, err=%v", objectName, err)
			return nil
		}
		log.Infof("seedCorpus: 导入完成并已触发索引: %s", objectName)
		return nil
	})
	if walkErr != nil {
		log.Warnf("seedCorpus: 遍历目录发生错误: %v", walkErr)
	}
}
