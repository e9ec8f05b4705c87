package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/handlers/apiserver"
	"socialnet/internal/handlers/chatserver"
	"socialnet/internal/middleware"
	"socialnet/internal/realtime"
	appRedis "socialnet/internal/redis"
	"socialnet/internal/services"
	"socialnet/internal/storage"
	"socialnet/internal/websocket"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(os.Getenv("SOCIALNET_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("API 服务器配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database, cfg.LogLevel)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("API 服务器数据库连接成功。")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("API 服务器数据库表迁移失败: %v", err)
	}

	// 3. 初始化 Redis Client (令牌黑名单和 redis 事件总线)
	var redisClient *redisDriver.Client
	var tokenBlacklist auth.TokenBlacklist
	if cfg.Redis.Addr != "" {
		redisClient, err = appRedis.NewClient(context.Background(), cfg.Redis)
		if err != nil {
			if cfg.Realtime.Bus == config.BusRedis {
				log.Fatalf("无法连接到 Redis: %v", err)
			}
			log.Printf("警告：无法连接到 Redis: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			tokenBlacklist = appRedis.NewRedisTokenBlacklist(redisClient, cfg.AppName+":")
			log.Println("成功连接到 Redis")
		}
	}

	// 4. 初始化 Hub 和事件总线。local 模式下 API 服务器自己提供 /ws
	var hub *websocket.Hub
	if cfg.Realtime.Bus == config.BusLocal || cfg.Realtime.Bus == "" {
		hub = websocket.NewHub(cfg.Realtime.QueueSize, nil)
		if tokenBlacklist == nil {
			// 单进程时进程内黑名单即可
			tokenBlacklist = auth.NewMemoryBlacklist()
		}
	}
	bus, err := realtime.Open(cfg, hub, redisClient)
	if err != nil {
		log.Fatalf("无法初始化事件总线: %v", err)
	}
	defer bus.Close()
	log.Printf("事件总线: %s", bus.Kind)

	// 5. 初始化存储服务
	if cfg.Storage.Type != "local" {
		log.Fatalf("不支持的存储类型: %s", cfg.Storage.Type)
	}
	storageService, err := storage.NewLocalStorageService(cfg.Storage)
	if err != nil {
		log.Fatalf("无法初始化本地存储服务: %v", err)
	}

	// 6. 初始化 Repositories
	userRepo := storage.NewGormUserRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	notificationRepo := storage.NewGormNotificationRepository(db)
	postRepo := storage.NewGormPostRepository(db)

	// 7. 初始化 Services
	notificationService := services.NewNotificationService(notificationRepo, friendshipRepo, bus.Publisher, cfg.Notifications.ListLimit)
	messengerService := services.NewMessengerService(db, userRepo, friendshipRepo, convoRepo, msgRepo, notificationService)
	friendshipService := services.NewFriendshipService(userRepo, friendshipRepo, msgRepo, messengerService, notificationService)
	userService := services.NewUserService(userRepo, friendshipService, storageService)
	authService := services.NewAuthService(userRepo, cfg.Auth, tokenBlacklist)
	postService := services.NewPostService(postRepo, friendshipRepo, storageService, notificationService, cfg.Realtime.PostEventsScope)
	presenceService := services.NewPresenceService(userRepo, friendshipRepo, notificationService)

	// 8. 设置 HTTP 路由
	validate := middleware.NewTokenValidator(cfg.Auth.JWTSecretKey, tokenBlacklist)
	r := mux.NewRouter()
	apiserver.RegisterRoutes(r, apiserver.Handlers{
		Auth:          apiserver.NewAuthHandler(authService),
		User:          apiserver.NewUserHandler(userService, authService),
		Friends:       apiserver.NewFriendRequestHandler(friendshipService),
		Conversation:  apiserver.NewConversationHandler(messengerService),
		Notifications: apiserver.NewNotificationHandler(notificationService),
		Posts:         apiserver.NewPostHandler(postService, cfg.Storage),
		Upload:        apiserver.NewUploadHandler(storageService, cfg.Storage),
	}, middleware.AuthMiddleware(validate))

	// 静态文件服务路由，用于访问上传的文件
	staticPath := strings.TrimSuffix(storageService.BaseURL(), "/") + "/"
	r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(http.Dir(storageService.BasePath()))))
	log.Printf("提供静态文件服务于 %s -> %s", staticPath, storageService.BasePath())

	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	if hub != nil {
		// 单进程模式下启动时没有任何连接
		if n, err := userRepo.ResetPresence(context.Background(), time.Now()); err != nil {
			log.Printf("警告：重置在线状态失败: %v", err)
		} else if n > 0 {
			log.Printf("已将 %d 个遗留在线用户标记为离线", n)
		}
		hub.SetPresence(presenceService)
		go hub.Run(hubCtx)
		wsHandler := chatserver.NewWebSocketHandler(hub, validate, messengerService, cfg.WebSocket)
		r.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)
		log.Printf("WebSocket Hub 已启动，路径: %s", cfg.Server.WebSocketPath)
	}

	// 9. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        handlers.CORS(corsOptions...)(r),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		IdleTimeout:    time.Second * 60,
	}

	go func() {
		log.Printf("API 服务器启动于 %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 API 服务器...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("API 服务器强制关闭: %v", err)
	}
	cancelHub()
	log.Println("API 服务器已成功关闭")
}
