package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
)

// CommandHandler executes a command frame sent by userID.
type CommandHandler func(ctx context.Context, userID uint, cmd imtypes.ClientCommand) error

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection. Nil only in tests.
	conn *websocket.Conn

	// Buffered channel of outbound frames. Closed by the hub on unregister.
	send chan []byte

	// Authenticated User ID for this client.
	UserID uint

	handleCommand CommandHandler
	closeOnce     sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, bufferSize int, handler CommandHandler) *Client {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, bufferSize),
		UserID:        userID,
		handleCommand: handler,
	}
}

// close tears the connection down; readPump then unregisters the client.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump pumps command frames from the websocket connection to the command handler.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()
	pongWait := time.Duration(wsCfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket 错误 (客户端: %d): %v", c.UserID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			log.Printf("警告: 客户端 %d 发送了非文本消息类型: %d", c.UserID, messageType)
			continue
		}
		c.dispatch(raw)
	}
}

// dispatch decodes and runs one command. A failing or panicking command only costs that command.
func (c *Client) dispatch(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("错误: 处理客户端 %d 的命令时发生 panic: %v\n%s", c.UserID, r, debug.Stack())
		}
	}()

	var cmd imtypes.ClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Printf("错误: 无法反序列化来自客户端 %d 的JSON: %v, 原始消息: %s", c.UserID, err, string(raw))
		return
	}
	if c.handleCommand == nil {
		log.Printf("警告: Client %d 的命令处理器未初始化，命令 %s 未处理。", c.UserID, cmd.Type)
		return
	}
	if err := c.handleCommand(context.Background(), c.UserID, cmd); err != nil {
		log.Printf("错误: 客户端 %d 的命令 %s 执行失败: %v", c.UserID, cmd.Type, err)
	}
}

// writePump pumps frames from the hub to the websocket connection, one frame per event.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	writeWait := time.Duration(wsCfg.WriteWaitSeconds) * time.Second
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request to a websocket for the already authenticated userID,
// registers the connection and starts its pumps.
func ServeWs(hub *Hub, handler CommandHandler, userID uint, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsCfg.MaxMessageSizeBytes,
		WriteBufferSize: wsCfg.MaxMessageSizeBytes,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ServeWs - Upgrade失败:", err)
		return
	}
	client := newClient(hub, conn, userID, wsCfg.SendBufferSize, handler)

	go client.writePump(wsCfg)
	hub.Register(client)
	go client.readPump(wsCfg)

	log.Printf("客户端已连接: UserID %d", userID)
}
