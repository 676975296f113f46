package models

import (
	"encoding/json"
	"time"
)

// ContactSummary 联系人概要记录（按 ExternalID 唯一）
type ContactSummary struct {
	ExternalID       string    `json:"external_id"`                 // 从资料页提取的数字号码
	Nickname         string    `json:"nickname"`                    // 列表中显示的昵称
	Gender           string    `json:"gender,omitempty"`            // 性别原文
	Age              int       `json:"age,omitempty"`               // 0 表示未知
	Location         string    `json:"location,omitempty"`          // 现居地
	FromLocation     string    `json:"from_location,omitempty"`     // 故乡
	Remark           string    `json:"remark,omitempty"`            // 签名
	ExploreCondition string    `json:"explore_condition,omitempty"` // 找到该联系人时使用的搜索条件
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ContactDetail 联系人详细记录，依赖已存在的概要记录
type ContactDetail struct {
	ExternalID  string    `json:"external_id"`
	Description string    `json:"description"`          // 资料页读取到的全部文本
	PhotoPath   string    `json:"photo_path,omitempty"` // 大头像裁剪图片路径
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Contact 概要 + 详情（详情可能缺失）
type Contact struct {
	ContactSummary
	Detail *ContactDetail `json:"detail,omitempty"`
}

// ContactQuery 联系人查询条件，空字段不参与过滤
type ContactQuery struct {
	Gender           string `json:"gender,omitempty" form:"gender"`
	Location         string `json:"location,omitempty" form:"location"`
	FromLocation     string `json:"from_location,omitempty" form:"from_location"`
	ExploreCondition string `json:"explore_condition,omitempty" form:"explore_condition"`
	Age              int    `json:"age,omitempty" form:"age"`
	Limit            int    `json:"limit,omitempty" form:"limit"`
}

// Matches 判断概要记录是否满足查询条件
func (q ContactQuery) Matches(s *ContactSummary) bool {
	if q.Gender != "" && s.Gender != q.Gender {
		return false
	}
	if q.Location != "" && s.Location != q.Location {
		return false
	}
	if q.FromLocation != "" && s.FromLocation != q.FromLocation {
		return false
	}
	if q.ExploreCondition != "" && s.ExploreCondition != q.ExploreCondition {
		return false
	}
	if q.Age > 0 && s.Age != q.Age {
		return false
	}
	return true
}

// SummaryUpdate 概要记录的部分更新，nil 字段保持不变
type SummaryUpdate struct {
	Nickname     *string `json:"nickname,omitempty"`
	Gender       *string `json:"gender,omitempty"`
	Age          *int    `json:"age,omitempty"`
	Location     *string `json:"location,omitempty"`
	FromLocation *string `json:"from_location,omitempty"`
	Remark       *string `json:"remark,omitempty"`
}

// Apply 将更新应用到概要记录
func (u SummaryUpdate) Apply(s *ContactSummary) {
	if u.Nickname != nil {
		s.Nickname = *u.Nickname
	}
	if u.Gender != nil {
		s.Gender = *u.Gender
	}
	if u.Age != nil {
		s.Age = *u.Age
	}
	if u.Location != nil {
		s.Location = *u.Location
	}
	if u.FromLocation != nil {
		s.FromLocation = *u.FromLocation
	}
	if u.Remark != nil {
		s.Remark = *u.Remark
	}
}

// DetailUpdate 详情记录的部分更新
type DetailUpdate struct {
	Description *string `json:"description,omitempty"`
	PhotoPath   *string `json:"photo_path,omitempty"`
}

// Apply 将更新应用到详情记录
func (u DetailUpdate) Apply(d *ContactDetail) {
	if u.Description != nil {
		d.Description = *u.Description
	}
	if u.PhotoPath != nil {
		d.PhotoPath = *u.PhotoPath
	}
}

// ToJSON 转换为JSON
func (s *ContactSummary) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON 从JSON解析
func (s *ContactSummary) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}
