package reconcile

import (
	"fmt"

	"Parley/internal/model"
	"Parley/internal/pkg/stream"
)

const (
	PolicyIncremental = "incremental"
	PolicySnapshot    = "snapshot"
	PolicyAuto        = "auto"
)

// Policy 把一次变更流推送合并进本地消息列表
type Policy interface {
	Name() string
	Apply(list *MessageList, snap stream.Snapshot[model.Message])
}

// SnapshotReplace 每次推送都用完整结果集重建列表，保持推送顺序
type SnapshotReplace struct{}

func (SnapshotReplace) Name() string { return PolicySnapshot }

func (SnapshotReplace) Apply(list *MessageList, snap stream.Snapshot[model.Message]) {
	list.reset(snap.Docs)
}

// IncrementalMerge 只应用推送携带的增量，对重复的 added 与乱序到达保持幂等
type IncrementalMerge struct{}

func (IncrementalMerge) Name() string { return PolicyIncremental }

func (IncrementalMerge) Apply(list *MessageList, snap stream.Snapshot[model.Message]) {
	for _, c := range snap.Changes {
		switch c.Type {
		case stream.Added:
			list.upsert(c.Doc)
		case stream.Modified:
			list.modify(c.Doc)
		case stream.Removed:
			list.remove(c.ID)
		}
	}
}

// ParsePolicy 校验配置中的策略名
func ParsePolicy(name string) (string, error) {
	switch name {
	case "", PolicyAuto:
		return PolicyAuto, nil
	case PolicyIncremental, PolicySnapshot:
		return name, nil
	}
	return "", fmt.Errorf("unknown sync policy %q", name)
}

// ForConversation auto 模式下旧版公共频道整体替换，其余会话增量合并
func ForConversation(mode, chatID string) Policy {
	switch mode {
	case PolicySnapshot:
		return SnapshotReplace{}
	case PolicyIncremental:
		return IncrementalMerge{}
	}
	if chatID == model.GeneralChatID {
		return SnapshotReplace{}
	}
	return IncrementalMerge{}
}
