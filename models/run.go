package models

import "time"

// RunStatus 一次探索运行的状态快照
type RunStatus struct {
	RunID       string    `json:"run_id"`
	Filter      string    `json:"filter"`
	State       string    `json:"state"`
	Pass        int       `json:"pass"`
	Step        int       `json:"step"`
	Repetitions int       `json:"repetitions"`
	Explored    int       `json:"explored"`  // 本轮已探索的昵称数
	Persisted   int       `json:"persisted"` // 整个运行期间新保存的联系人数
	Failures    int       `json:"failures"`
	StartTime   time.Time `json:"start_time"`
	LastError   string    `json:"last_error,omitempty"`
}
