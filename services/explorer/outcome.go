package explorer

import (
	"fmt"
)

// Candidate 结果列表中的一个联系人，只以昵称标识
type Candidate struct {
	Name string
}

// Profile 从资料页读取到的联系人
type Profile struct {
	ExternalID      string `json:"external_id"`
	Nickname        string `json:"nickname"`
	RawIntroduction string `json:"raw_introduction"`
	AvatarPath      string `json:"avatar_path,omitempty"`
	Fields
}

// OutcomeKind 单个联系人处理结果的类型
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeFailure   OutcomeKind = "failure"
)

// FailureKind 失败原因
type FailureKind string

const (
	FailureNavigation  FailureKind = "navigation"
	FailureSnapshot    FailureKind = "snapshot"
	FailureExtraction  FailureKind = "extraction"
	FailurePersistence FailureKind = "persistence"
)

// Outcome 处理一个联系人的结果，Kind 决定哪个字段有效
type Outcome struct {
	Kind       OutcomeKind
	Profile    *Profile    // OutcomeSuccess
	ExternalID string      // OutcomeDuplicate
	Failure    FailureKind // OutcomeFailure
	Err        error       // OutcomeDuplicate, OutcomeFailure
}

// Success 成功写入
func Success(p *Profile) Outcome {
	return Outcome{Kind: OutcomeSuccess, Profile: p, ExternalID: p.ExternalID}
}

// Duplicate 已存在于数据库
func Duplicate(id string) Outcome {
	return Outcome{Kind: OutcomeDuplicate, ExternalID: id, Err: &DuplicateContactError{ExternalID: id}}
}

// Failure 处理失败
func Failure(kind FailureKind, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Failure: kind, Err: err}
}

// ExtractionFailure 读完资料页仍未找到 QQ 号
type ExtractionFailure struct {
	Name   string
	Cycles int
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("no external id found for %q after %d read cycles", e.Name, e.Cycles)
}

// DuplicateContactError 联系人已存在，用作控制信号
type DuplicateContactError struct {
	ExternalID string
}

func (e *DuplicateContactError) Error() string {
	return fmt.Sprintf("contact %s already exists", e.ExternalID)
}

// PersistenceFailure 写入数据库失败
type PersistenceFailure struct {
	ExternalID string
	Op         string
	Err        error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.ExternalID, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// AvatarError 头像截取失败，联系人仍会被保存
type AvatarError struct {
	ExternalID string
	Err        error
}

func (e *AvatarError) Error() string {
	return fmt.Sprintf("avatar for %s: %v", e.ExternalID, e.Err)
}

func (e *AvatarError) Unwrap() error {
	return e.Err
}
