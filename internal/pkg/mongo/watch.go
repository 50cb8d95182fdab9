package mongo

import (
	"context"
	log "log/slog"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Parley/internal/pkg/reconcile"
	"Parley/internal/pkg/stream"
)

// query 一个可订阅的查询：Find 过滤与排序、变更流过滤、本地二次匹配
type query[T any] struct {
	col         *mongo.Collection
	filter      bson.M
	sort        bson.D
	streamMatch bson.M
	decode      func(bson.Raw) (T, error)
	match       func(T) bool
	idOf        func(T) string
	at          func(T) time.Time
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.RawValue `bson:"fullDocument"`
}

// watch 先打开变更流再执行 Find，保证初始结果集与后续增量之间不丢写入；
// 两者重叠的部分在本地视图中按 ID 去重
func watch[T any](ctx context.Context, q query[T], fn stream.Handler[T]) (stream.Subscription, error) {
	streamCtx, cancel := context.WithCancel(context.Background())

	pipeline := mongo.Pipeline{{{Key: "$match", Value: q.streamMatch}}}
	cs, err := q.col.Watch(streamCtx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "open change stream")
	}

	cursor, err := q.col.Find(ctx, q.filter, options.Find().SetSort(q.sort))
	if err != nil {
		cancel()
		_ = cs.Close(context.Background())
		return nil, errors.Wrap(err, "initial find")
	}
	var raws []bson.Raw
	if err := cursor.All(ctx, &raws); err != nil {
		cancel()
		_ = cs.Close(context.Background())
		return nil, errors.Wrap(err, "decode initial result set")
	}

	view := reconcile.NewOrdered(q.idOf, q.at)
	initial := make([]stream.Change[T], 0, len(raws))
	for _, raw := range raws {
		doc, err := q.decode(raw)
		if err != nil {
			log.WarnContext(ctx, "Skip undecodable document", "collection", q.col.Name(), "err", err)
			continue
		}
		if view.Insert(doc) {
			initial = append(initial, stream.Change[T]{Type: stream.Added, ID: q.idOf(doc), Doc: doc})
		}
	}
	fn(stream.Snapshot[T]{Docs: view.Items(), Changes: initial})

	go func() {
		defer func() {
			_ = cs.Close(context.Background())
		}()
		for cs.Next(streamCtx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				log.Warn("Skip undecodable change event", "collection", q.col.Name(), "err", err)
				continue
			}
			change, ok := apply(q, view, ev)
			if !ok {
				continue
			}
			fn(stream.Snapshot[T]{Docs: view.Items(), Changes: []stream.Change[T]{change}})
		}
		if err := cs.Err(); err != nil && streamCtx.Err() == nil {
			log.Error("Change stream terminated", "collection", q.col.Name(), "err", err)
		}
	}()

	return stream.NewSubscription(cancel), nil
}

// apply 把一条变更事件写入本地视图，返回对订阅者可见的变更
func apply[T any](q query[T], view *reconcile.Ordered[T], ev changeEvent) (stream.Change[T], bool) {
	id := ev.DocumentKey.ID
	if ev.OperationType == "delete" || ev.FullDocument.Type != bson.TypeEmbeddedDocument {
		prev, ok := view.Get(id)
		if !ok || !view.Remove(id) {
			return stream.Change[T]{}, false
		}
		return stream.Change[T]{Type: stream.Removed, ID: id, Doc: prev}, true
	}

	doc, err := q.decode(ev.FullDocument.Document())
	if err != nil {
		log.Warn("Skip undecodable document", "collection", q.col.Name(), "id", id, "err", err)
		return stream.Change[T]{}, false
	}
	if !q.match(doc) {
		prev, ok := view.Get(id)
		if !ok || !view.Remove(id) {
			return stream.Change[T]{}, false
		}
		return stream.Change[T]{Type: stream.Removed, ID: id, Doc: prev}, true
	}
	if view.Has(id) {
		view.Replace(doc)
		return stream.Change[T]{Type: stream.Modified, ID: id, Doc: doc}, true
	}
	view.Insert(doc)
	return stream.Change[T]{Type: stream.Added, ID: id, Doc: doc}, true
}

// watchFilter 变更流只关心写入类操作，删除事件没有 fullDocument，交给本地视图判断
func watchFilter(fields bson.M) bson.M {
	clauses := bson.A{bson.M{"operationType": "delete"}}
	full := bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}}}
	for k, v := range fields {
		full["fullDocument."+k] = v
	}
	clauses = append(clauses, full)
	return bson.M{"$or": clauses}
}
