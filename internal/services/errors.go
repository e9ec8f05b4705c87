package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every service error wraps exactly one of them so handlers can map
// them to a status without knowing each sentinel.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrForbidden        = errors.New("forbidden")
)

func kindError(kind error, message string) error {
	return fmt.Errorf("%w: %s", kind, message)
}

var (
	ErrUserNotFound           = kindError(ErrNotFound, "用户未找到")
	ErrFriendshipNotFound     = kindError(ErrNotFound, "好友关系不存在")
	ErrFriendRequestNotFound  = kindError(ErrNotFound, "好友请求不存在")
	ErrConversationNotFound   = kindError(ErrNotFound, "会话不存在")
	ErrNotificationNotFound   = kindError(ErrNotFound, "通知不存在")
	ErrPostNotFound           = kindError(ErrNotFound, "帖子不存在")
	ErrCommentNotFound        = kindError(ErrNotFound, "评论不存在")
	ErrSelfFriendship         = kindError(ErrInvalidOperation, "不能添加自己为好友")
	ErrFriendshipExists       = kindError(ErrInvalidOperation, "好友关系或请求已存在")
	ErrInvalidDecision        = kindError(ErrInvalidOperation, "无效的处理决定")
	ErrSelfConversation       = kindError(ErrInvalidOperation, "不能与自己建立会话")
	ErrEmptyMessage           = kindError(ErrInvalidOperation, "消息内容和图片不能同时为空")
	ErrUserAlreadyExists      = kindError(ErrInvalidOperation, "用户名已存在")
	ErrInvalidRegistration    = kindError(ErrInvalidOperation, "用户名和密码不能为空")
	ErrPasswordTooLong        = kindError(ErrInvalidOperation, "密码长度不能超过 72 字节")
	ErrPasswordTooShort       = kindError(ErrInvalidOperation, "新密码至少需要 6 个字符")
	ErrEmptyComment           = kindError(ErrInvalidOperation, "评论内容不能为空")
	ErrInvalidImage           = kindError(ErrInvalidOperation, "只能上传图片文件")
	ErrEmptyPost              = kindError(ErrInvalidOperation, "帖子需要图片或描述")
	ErrNotFriends             = kindError(ErrForbidden, "只能给好友发送消息")
	ErrInvalidCredentials     = kindError(ErrForbidden, "无效的用户名或密码")
	ErrIncorrectPassword      = kindError(ErrForbidden, "密码不正确")
	ErrNotPostOwner           = kindError(ErrForbidden, "只有帖子作者可以执行此操作")
	ErrCommentDeleteForbidden = kindError(ErrForbidden, "只有评论作者或帖子作者可以删除评论")
)
