package core

import "time"

// Queue/Redis キーと可視タイムアウトのデフォルト値をまとめた定数。
const (
	PendingQueueKey    = "pending_judgment_jobs"
	ProcessingQueueKey = "processing_judgment_jobs"
	// DefaultVisibilityTimeout はワーカーがジョブを保持する可視タイムアウト。
	DefaultVisibilityTimeout = 30 * time.Second
)
