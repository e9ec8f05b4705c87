package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisDriver "github.com/redis/go-redis/v9"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/handlers/chatserver"
	"socialnet/internal/middleware"
	"socialnet/internal/realtime"
	appRedis "socialnet/internal/redis"
	"socialnet/internal/services"
	"socialnet/internal/storage"
	"socialnet/internal/websocket"
)

// The chat server holds the live connections when the API server publishes to Kafka
// or Redis. It consumes the bus into its hub and runs presence for its own clients.
func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(os.Getenv("SOCIALNET_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("Chat 服务器配置加载成功。")
	if cfg.Realtime.Bus == config.BusLocal || cfg.Realtime.Bus == "" {
		log.Fatalf("REALTIME.BUS=%q: local 模式下由 API 服务器提供 WebSocket，无需启动 Chat 服务器", cfg.Realtime.Bus)
	}

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database, cfg.LogLevel)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("Chat 服务器数据库连接成功。")

	// 3. Redis (令牌黑名单和 redis 事件总线)
	var redisClient *redisDriver.Client
	var tokenBlacklist auth.TokenBlacklist
	if cfg.Redis.Addr != "" {
		redisClient, err = appRedis.NewClient(context.Background(), cfg.Redis)
		if err != nil {
			if cfg.Realtime.Bus == config.BusRedis {
				log.Fatalf("无法连接到 Redis: %v", err)
			}
			log.Printf("警告：无法连接到 Redis，不检查令牌黑名单: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			tokenBlacklist = appRedis.NewRedisTokenBlacklist(redisClient, cfg.AppName+":")
		}
	}

	// 4. 事件总线
	hub := websocket.NewHub(cfg.Realtime.QueueSize, nil)
	bus, err := realtime.Open(cfg, hub, redisClient)
	if err != nil {
		log.Fatalf("无法初始化事件总线: %v", err)
	}
	defer bus.Close()

	// 5. Repositories 和 Services
	userRepo := storage.NewGormUserRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	notificationRepo := storage.NewGormNotificationRepository(db)

	notificationService := services.NewNotificationService(notificationRepo, friendshipRepo, bus.Publisher, cfg.Notifications.ListLimit)
	messengerService := services.NewMessengerService(db, userRepo, friendshipRepo, convoRepo, msgRepo, notificationService)
	presenceService := services.NewPresenceService(userRepo, friendshipRepo, notificationService)

	// 6. 启动 Hub 和总线消费者
	hub.SetPresence(presenceService)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := bus.Consume(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("事件总线消费者错误: %v", err)
		}
		log.Println("事件总线消费者 goroutine 已停止。")
	}()

	// 7. 配置 HTTP 服务器路由
	validate := middleware.NewTokenValidator(cfg.Auth.JWTSecretKey, tokenBlacklist)
	wsHandler := chatserver.NewWebSocketHandler(hub, validate, messengerService, cfg.WebSocket)
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:           serverAddr,
		Handler:        mux,
		ReadTimeout:    cfg.Server.ReadTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("Chat HTTP 服务器启动于 %s, WebSocket 路径: %s", serverAddr, cfg.Server.WebSocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Chat 服务器启动失败: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Chat 服务器准备关闭...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Printf("Chat 服务器关闭失败: %v", err)
	}

	cancel()
	select {
	case <-consumerDone:
	case <-ctxShutdown.Done():
		log.Println("等待事件总线消费者停止超时")
	}
	log.Println("Chat 服务器已优雅关闭。")
}
