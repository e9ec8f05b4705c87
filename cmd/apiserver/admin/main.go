package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"socialnet/internal/config"
	"socialnet/internal/services"
	"socialnet/internal/storage"
)

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  ./admin show-user <userID> - 显示用户信息和好友")
	fmt.Println("  ./admin show-conversation <userID> <userID> - 显示两个用户之间的会话")
	fmt.Println("  ./admin cleanup-notifications <userID> - 删除失效的好友请求通知")
	fmt.Println("  ./admin reset-presence - 将所有用户标记为离线")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(os.Getenv("SOCIALNET_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	db, err := storage.InitDB(cfg.Database, cfg.LogLevel)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}

	ctx := context.Background()
	userRepo := storage.NewGormUserRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)

	switch os.Args[1] {
	case "show-user":
		showUser(ctx, userRepo, friendshipRepo, parseID(2, "用户ID"))

	case "show-conversation":
		showConversation(ctx, storage.NewGormConversationRepository(db), storage.NewGormMessageRepository(db),
			parseID(2, "用户ID"), parseID(3, "用户ID"))

	case "cleanup-notifications":
		// 没有在线连接需要通知，publisher 为 nil
		notifications := services.NewNotificationService(storage.NewGormNotificationRepository(db), friendshipRepo, nil, cfg.Notifications.ListLimit)
		removed, err := notifications.CleanupStale(ctx, parseID(2, "用户ID"))
		if err != nil {
			log.Fatalf("清理通知失败: %v", err)
		}
		fmt.Printf("已删除 %d 条失效通知\n", removed)

	case "reset-presence":
		n, err := userRepo.ResetPresence(ctx, time.Now())
		if err != nil {
			log.Fatalf("重置在线状态失败: %v", err)
		}
		fmt.Printf("已将 %d 个用户标记为离线\n", n)

	default:
		usage()
		log.Fatalf("未知命令: %s", os.Args[1])
	}
}

func parseID(pos int, label string) uint {
	if len(os.Args) <= pos {
		log.Fatalf("需要指定%s", label)
	}
	id, err := strconv.ParseUint(os.Args[pos], 10, 32)
	if err != nil {
		log.Fatalf("无效的%s: %v", label, err)
	}
	return uint(id)
}

func showUser(ctx context.Context, users storage.UserRepository, friendships storage.FriendshipRepository, userID uint) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		log.Fatalf("查找用户失败: %v", err)
	}

	fmt.Printf("用户 %d 信息:\n", userID)
	fmt.Println("--------------------------------------")
	fmt.Printf("用户名: %s\n", user.Username)
	fmt.Printf("昵称: %s\n", user.Nickname)
	fmt.Printf("在线: %v\n", user.IsOnline)
	if user.LastSeenAt != nil {
		fmt.Printf("最后在线: %s\n", user.LastSeenAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("注册时间: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))

	friends, err := friendships.ListFriends(ctx, userID)
	if err != nil {
		fmt.Printf("获取好友失败: %v\n", err)
		return
	}
	fmt.Printf("好友 (%d 人):\n", len(friends))
	for i, f := range friends {
		fmt.Printf("#%d ID: %d, 用户名: %s, 在线: %v\n", i+1, f.ID, f.Username, f.IsOnline)
	}
}

func showConversation(ctx context.Context, conversations storage.ConversationRepository, messages storage.MessageRepository, userA, userB uint) {
	conversation, err := conversations.FindByUsers(ctx, userA, userB)
	if err != nil {
		log.Fatalf("获取会话失败: %v", err)
	}
	if conversation == nil {
		fmt.Printf("用户 %d 和 %d 之间没有会话\n", userA, userB)
		return
	}

	fmt.Printf("会话 %d 信息:\n", conversation.ID)
	fmt.Println("--------------------------------------")
	fmt.Printf("参与者: %d, %d\n", conversation.UserLowID, conversation.UserHighID)
	fmt.Printf("创建时间: %s\n", conversation.CreatedAt.Format("2006-01-02 15:04:05"))

	list, err := messages.ListByConversation(ctx, conversation.ID)
	if err != nil {
		fmt.Printf("获取消息失败: %v\n", err)
		return
	}
	unread := 0
	for _, m := range list {
		if !m.IsRead {
			unread++
		}
	}
	fmt.Printf("消息数量: %d (未读 %d)\n", len(list), unread)
}
