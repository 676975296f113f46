package explorer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fields 从资料文本中解析出的字段，未匹配的字段为空
type Fields struct {
	Gender          string `json:"gender,omitempty"`
	Age             int    `json:"age,omitempty"` // 0 表示未知
	CurrentLocation string `json:"current_location,omitempty"`
	OriginLocation  string `json:"origin_location,omitempty"`
	Remark          string `json:"remark,omitempty"`
}

// Rules 一套语言区域相关的匹配规则，每条规则都取第一个捕获组
type Rules struct {
	Gender          string
	Age             string
	CurrentLocation string
	OriginLocation  string
	Remark          string
	LabeledID       string
	BareID          string
}

// ChineseRules QQ 中文界面
var ChineseRules = Rules{
	Gender:          `(?m)(?:^|[\s|:：])(男|女)(?:$|[\s|])`,
	Age:             `(\d+)\s*岁`,
	CurrentLocation: `现居\s*[:：]?\s*([^|\n]+)`,
	OriginLocation:  `故乡\s*[:：]?\s*([^|\n]+)`,
	Remark:          `签名\s*[:：]?\s*([^\n]+)`,
	LabeledID:       `QQ号\s*[:：]?\s*(\d+)`,
	BareID:          `(\d{6,})`,
}

// EnglishRules QQ 英文界面
var EnglishRules = Rules{
	Gender:          `(?m)(?:^|[\s|:])(female|male)(?:$|[\s|])`,
	Age:             `(\d+)\s*years?\b`,
	CurrentLocation: `currently resides in\s*([^|\n]+)`,
	OriginLocation:  `originally from\s*([^|\n]+)`,
	Remark:          `signature\s*[:：]?\s*([^\n]+)`,
	LabeledID:       `ID number\s*[:：]?\s*(\d+)`,
	BareID:          `(\d{6,})`,
}

// RulesForLocale 按配置的 locale 选择规则，未知 locale 返回错误
func RulesForLocale(locale string) (Rules, error) {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", "zh", "zh-cn", "zh_cn":
		return ChineseRules, nil
	case "en", "en-us", "en_us":
		return EnglishRules, nil
	default:
		return Rules{}, fmt.Errorf("unsupported locale: %s", locale)
	}
}

// Extractor 编译后的规则
type Extractor struct {
	gender    *regexp.Regexp
	age       *regexp.Regexp
	current   *regexp.Regexp
	origin    *regexp.Regexp
	remark    *regexp.Regexp
	labeledID *regexp.Regexp
	bareID    *regexp.Regexp
}

// NewExtractor 编译规则
func NewExtractor(rules Rules) (*Extractor, error) {
	e := &Extractor{}
	targets := []struct {
		name    string
		pattern string
		dst     **regexp.Regexp
	}{
		{"gender", rules.Gender, &e.gender},
		{"age", rules.Age, &e.age},
		{"current location", rules.CurrentLocation, &e.current},
		{"origin location", rules.OriginLocation, &e.origin},
		{"remark", rules.Remark, &e.remark},
		{"labeled id", rules.LabeledID, &e.labeledID},
		{"bare id", rules.BareID, &e.bareID},
	}
	for _, t := range targets {
		if t.pattern == "" {
			continue
		}
		re, err := regexp.Compile(t.pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s rule: %w", t.name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%s rule needs a capture group", t.name)
		}
		*t.dst = re
	}
	return e, nil
}

func firstGroup(re *regexp.Regexp, raw string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Extract 逐条独立匹配，一条未命中不影响其它
func (e *Extractor) Extract(raw string) Fields {
	f := Fields{
		Gender:          firstGroup(e.gender, raw),
		CurrentLocation: firstGroup(e.current, raw),
		OriginLocation:  firstGroup(e.origin, raw),
		Remark:          firstGroup(e.remark, raw),
	}
	if age := firstGroup(e.age, raw); age != "" {
		if n, err := strconv.Atoi(age); err == nil {
			f.Age = n
		}
	}
	return f
}

// ExternalID 解析 QQ 号，带标签的匹配优先，否则取第一个至少 6 位的数字
func (e *Extractor) ExternalID(raw string) (id string, labeled bool) {
	if id := firstGroup(e.labeledID, raw); id != "" {
		return id, true
	}
	return firstGroup(e.bareID, raw), false
}
