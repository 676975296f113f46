package explorer

import (
	"sync"
	"time"

	"github.com/browserwing/contactwing/executor"
	"github.com/browserwing/contactwing/models"
	"github.com/google/uuid"
)

// State 探索状态机的状态
type State string

const (
	StateIdle       State = "IDLE"
	StateInit       State = "INIT"
	StateSearching  State = "SEARCHING"
	StateListing    State = "LISTING"
	StateOpening    State = "OPENING"
	StateReading    State = "READING"
	StateAvatar     State = "AVATAR"
	StatePersisting State = "PERSISTING"
	StateClosing    State = "CLOSING"
	StateAdvancing  State = "ADVANCING"
	StateBackoff    State = "BACKOFF"
	StateDone       State = "DONE"
	StateStopped    State = "STOPPED"
)

// Session 一次探索运行的全部可变状态
type Session struct {
	mu        sync.RWMutex
	runID     string
	filter    string
	startTime time.Time
	state     State
	pass      int
	persisted int
	failures  int
	lastError string

	Steps *executor.StepCounter
	Dedup *DedupTracker
}

// NewSession 创建运行会话
func NewSession(filter string, store ContactStore) *Session {
	return &Session{
		runID:     uuid.New().String(),
		filter:    filter,
		startTime: time.Now(),
		state:     StateIdle,
		Steps:     &executor.StepCounter{},
		Dedup:     NewDedupTracker(store),
	}
}

// RunID 运行 ID，同时作为日志 trace_id
func (s *Session) RunID() string {
	return s.runID
}

// Filter 搜索条件
func (s *Session) Filter() string {
	return s.filter
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State 当前状态
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) beginPass() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pass++
	return s.pass
}

// Pass 当前轮次，从 1 开始
func (s *Session) Pass() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pass
}

func (s *Session) recordPersisted() {
	s.mu.Lock()
	s.persisted++
	s.mu.Unlock()
}

func (s *Session) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if err != nil {
		s.lastError = err.Error()
	}
}

// Status 供状态接口读取
func (s *Session) Status() models.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.RunStatus{
		RunID:       s.runID,
		Filter:      s.filter,
		State:       string(s.state),
		Pass:        s.pass,
		Step:        s.Steps.Current(),
		Repetitions: s.Dedup.RepetitionCount(),
		Explored:    s.Dedup.ExploredCount(),
		Persisted:   s.persisted,
		Failures:    s.failures,
		StartTime:   s.startTime,
		LastError:   s.lastError,
	}
}
