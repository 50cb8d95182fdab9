package logger

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
)

const (
	mongoSlowThreshold = 200 * time.Millisecond
	mongoMaxDetail     = 1000
)

// mongoCommand 命令开始时记录的上下文，完成事件里只有 request id
type mongoCommand struct {
	collection   string
	changeStream bool
}

// NewMongoMonitor 按 request id 关联开始与完成事件，标注集合名与变更流命令。
// 变更流的 getMore 会长时间阻塞等待新事件，不计入慢查询
func NewMongoMonitor() *event.CommandMonitor {
	var inflight sync.Map

	return &event.CommandMonitor{
		Started: func(ctx context.Context, evt *event.CommandStartedEvent) {
			info := mongoCommand{
				collection:   MongoCollection(evt.CommandName, evt.Command),
				changeStream: IsChangeStream(evt.CommandName, evt.Command),
			}
			switch evt.CommandName {
			case "getMore":
				if prev, ok := inflight.Load(cursorKey(evt.Command)); ok {
					info.changeStream = prev.(mongoCommand).changeStream
				}
			case "killCursors":
				forgetCursors(&inflight, evt.Command)
			}
			inflight.Store(evt.RequestID, info)

			detail := evt.Command.String()
			if len(detail) > mongoMaxDetail {
				detail = detail[:mongoMaxDetail] + "...[truncated]"
			}
			log.DebugContext(ctx, "MongoDB command started",
				log.String("command", evt.CommandName),
				log.String("collection", info.collection),
				log.Bool("change_stream", info.changeStream),
				log.String("request_id", fmt.Sprintf("%d", evt.RequestID)),
				log.String("cmd_detail", detail),
			)
		},
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			info := takeCommand(&inflight, evt.RequestID)
			if info.changeStream {
				if id, ok := cursorID(evt.Reply); ok {
					inflight.Store(id, info)
				}
			}
			fields := []any{
				log.String("command", evt.CommandName),
				log.String("collection", info.collection),
				log.Bool("change_stream", info.changeStream),
				log.Duration("latency", evt.Duration),
				log.String("request_id", fmt.Sprintf("%d", evt.RequestID)),
			}
			if !info.changeStream && evt.Duration > mongoSlowThreshold {
				log.WarnContext(ctx, "MongoDB slow command", fields...)
				return
			}
			log.DebugContext(ctx, "MongoDB command succeeded", fields...)
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			info := takeCommand(&inflight, evt.RequestID)
			log.ErrorContext(ctx, "MongoDB command failed",
				log.String("command", evt.CommandName),
				log.String("collection", info.collection),
				log.Bool("change_stream", info.changeStream),
				log.Duration("latency", evt.Duration),
				log.String("request_id", fmt.Sprintf("%d", evt.RequestID)),
				log.Any("err", evt.Failure),
			)
		},
	}
}

// MongoCollection 命令作用的集合：首个字段的值即集合名，getMore 的集合在 collection 字段
func MongoCollection(name string, cmd bson.Raw) string {
	field := name
	if name == "getMore" {
		field = "collection"
	}
	if v, ok := cmd.Lookup(field).StringValueOK(); ok {
		return v
	}
	return ""
}

// IsChangeStream aggregate 管道的第一阶段为 $changeStream
func IsChangeStream(name string, cmd bson.Raw) bool {
	if name != "aggregate" {
		return false
	}
	stages, ok := cmd.Lookup("pipeline").ArrayOK()
	if !ok {
		return false
	}
	first, err := stages.IndexErr(0)
	if err != nil {
		return false
	}
	stage, ok := first.Value().DocumentOK()
	if !ok {
		return false
	}
	_, ok = stage.Lookup("$changeStream").DocumentOK()
	return ok
}

func takeCommand(inflight *sync.Map, requestID int64) mongoCommand {
	v, ok := inflight.LoadAndDelete(requestID)
	if !ok {
		return mongoCommand{}
	}
	return v.(mongoCommand)
}

// cursorRef 变更流游标 ID，与 request id 共用一个 map，用独立类型区分键
type cursorRef int64

func cursorKey(cmd bson.Raw) cursorRef {
	id, _ := cmd.Lookup("getMore").Int64OK()
	return cursorRef(id)
}

func cursorID(reply bson.Raw) (cursorRef, bool) {
	id, ok := reply.Lookup("cursor", "id").Int64OK()
	if !ok || id == 0 {
		return 0, false
	}
	return cursorRef(id), true
}

// forgetCursors 订阅取消时驱动发送 killCursors，释放对应游标的记录
func forgetCursors(inflight *sync.Map, cmd bson.Raw) {
	ids, ok := cmd.Lookup("cursors").ArrayOK()
	if !ok {
		return
	}
	values, err := ids.Values()
	if err != nil {
		return
	}
	for _, v := range values {
		if id, ok := v.Int64OK(); ok {
			inflight.Delete(cursorRef(id))
		}
	}
}
