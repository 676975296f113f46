package config

import (
	"fmt"
	"os"
	"time"

	"github.com/browserwing/contactwing/pkg/logger"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Debug    bool                 `json:"debug" toml:"debug"`
	Device   *DeviceConfig        `json:"device" toml:"device"`
	App      *AppConfig           `json:"app" toml:"app"`
	Explorer *ExplorerConfig      `json:"explorer" toml:"explorer"`
	Database *DatabaseConfig      `json:"database" toml:"database"`
	Server   *ServerConfig        `json:"server" toml:"server"`
	Log      *logger.LoggerConfig `json:"log,omitempty" toml:"log,omitempty"`
}

// DeviceConfig adb 与设备相关配置
type DeviceConfig struct {
	ADBPath          string `json:"adb_path" toml:"adb_path"`
	Serial           string `json:"serial,omitempty" toml:"serial,omitempty"` // 为空且只连接一台设备时自动选择
	CommandTimeoutMs int    `json:"command_timeout_ms" toml:"command_timeout_ms"`
	RemoteDir        string `json:"remote_dir" toml:"remote_dir"` // 设备上临时存放 xml/png 的目录
}

// SelectorConfig 通过属性精确匹配界面元素
type SelectorConfig struct {
	Attribute string `json:"attribute" toml:"attribute"`
	Value     string `json:"value" toml:"value"`
}

// AppConfig 目标应用及界面元素选择器
type AppConfig struct {
	Package        string         `json:"package" toml:"package"`
	EntryMenu      SelectorConfig `json:"entry_menu" toml:"entry_menu"`
	AddContact     SelectorConfig `json:"add_contact" toml:"add_contact"`
	AdvancedSearch SelectorConfig `json:"advanced_search" toml:"advanced_search"`
	SearchButton   SelectorConfig `json:"search_button" toml:"search_button"`
	FriendList     SelectorConfig `json:"friend_list" toml:"friend_list"`
	AvatarEntry    SelectorConfig `json:"avatar_entry" toml:"avatar_entry"`
	AvatarImage    SelectorConfig `json:"avatar_image" toml:"avatar_image"`
}

// ExplorerConfig 探索过程配置
type ExplorerConfig struct {
	Filter         string `json:"filter" toml:"filter"`     // 搜索条件标签，随记录一起保存
	WorkDir        string `json:"work_dir" toml:"work_dir"` // 每次运行在其下创建 job_<时间> 目录
	Locale         string `json:"locale" toml:"locale"`     // zh-CN 或 en
	SettleDelayMs  int    `json:"settle_delay_ms" toml:"settle_delay_ms"`
	MaxPasses      int    `json:"max_passes" toml:"max_passes"`
	MaxReadCycles  int    `json:"max_read_cycles" toml:"max_read_cycles"`
	MaxPageScrolls int    `json:"max_page_scrolls" toml:"max_page_scrolls"`
	BackoffSeconds int    `json:"backoff_seconds" toml:"backoff_seconds"`
}

type DatabaseConfig struct {
	Driver string `json:"driver" toml:"driver"` // bolt 或 sqlite
	Path   string `json:"path" toml:"path"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Port    string `json:"port" toml:"port"`
	Host    string `json:"host" toml:"host"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Device: &DeviceConfig{
			ADBPath:          "adb",
			CommandTimeoutMs: 30000,
			RemoteDir:        "/sdcard",
		},
		App: DefaultAppConfig(),
		Explorer: &ExplorerConfig{
			WorkDir:        "./data/jobs",
			Locale:         "zh-CN",
			SettleDelayMs:  1000,
			MaxPasses:      1000,
			MaxReadCycles:  3,
			MaxPageScrolls: 100,
			BackoffSeconds: 10,
		},
		Database: &DatabaseConfig{
			Driver: "bolt",
			Path:   "./data/contactwing.db",
		},
		Server: &ServerConfig{
			Port: "8080",
			Host: "127.0.0.1",
		},
		Log: &logger.LoggerConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// DefaultAppConfig 手机 QQ 的默认选择器
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Package:        "com.tencent.mobileqq",
		EntryMenu:      SelectorConfig{Attribute: "content-desc", Value: "快捷入口"},
		AddContact:     SelectorConfig{Attribute: "text", Value: "加好友/群"},
		AdvancedSearch: SelectorConfig{Attribute: "text", Value: "按条件查找"},
		SearchButton:   SelectorConfig{Attribute: "text", Value: "查找"},
		FriendList:     SelectorConfig{Attribute: "resource-id", Value: "com.tencent.mobileqq:id/f9r"},
		AvatarEntry:    SelectorConfig{Attribute: "resource-id", Value: "com.tencent.mobileqq:id/dk3"},
		AvatarImage:    SelectorConfig{Attribute: "resource-id", Value: "com.tencent.mobileqq:id/image"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		defConfig := Default()
		// 如果错误是文件不存在，则将defConfig写到本地的path位置
		if os.IsNotExist(err) {
			cfgData, mErr := toml.Marshal(defConfig)
			if mErr == nil {
				os.WriteFile(path, cfgData, 0o644)
			}
			applyEnv(defConfig)
			return defConfig, nil
		}
		return defConfig, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.fillDefaults()
	applyEnv(&cfg)
	return &cfg, nil
}

// fillDefaults 确保所有必需的配置项都有值
func (c *Config) fillDefaults() {
	def := Default()
	if c.Device == nil {
		c.Device = def.Device
	}
	if c.Device.ADBPath == "" {
		c.Device.ADBPath = def.Device.ADBPath
	}
	if c.Device.CommandTimeoutMs <= 0 {
		c.Device.CommandTimeoutMs = def.Device.CommandTimeoutMs
	}
	if c.Device.RemoteDir == "" {
		c.Device.RemoteDir = def.Device.RemoteDir
	}
	if c.App == nil {
		c.App = def.App
	}
	if c.App.Package == "" {
		c.App.Package = def.App.Package
	}
	fillSelector(&c.App.EntryMenu, def.App.EntryMenu)
	fillSelector(&c.App.AddContact, def.App.AddContact)
	fillSelector(&c.App.AdvancedSearch, def.App.AdvancedSearch)
	fillSelector(&c.App.SearchButton, def.App.SearchButton)
	fillSelector(&c.App.FriendList, def.App.FriendList)
	fillSelector(&c.App.AvatarEntry, def.App.AvatarEntry)
	fillSelector(&c.App.AvatarImage, def.App.AvatarImage)

	if c.Explorer == nil {
		c.Explorer = def.Explorer
	}
	e, d := c.Explorer, def.Explorer
	if e.WorkDir == "" {
		e.WorkDir = d.WorkDir
	}
	if e.Locale == "" {
		e.Locale = d.Locale
	}
	if e.SettleDelayMs <= 0 {
		e.SettleDelayMs = d.SettleDelayMs
	}
	if e.MaxPasses <= 0 {
		e.MaxPasses = d.MaxPasses
	}
	if e.MaxReadCycles <= 0 {
		e.MaxReadCycles = d.MaxReadCycles
	}
	if e.MaxPageScrolls <= 0 {
		e.MaxPageScrolls = d.MaxPageScrolls
	}
	if e.BackoffSeconds <= 0 {
		e.BackoffSeconds = d.BackoffSeconds
	}

	if c.Database == nil {
		c.Database = def.Database
	}
	if c.Database.Driver == "" {
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Server == nil {
		c.Server = def.Server
	}
	if c.Log == nil {
		c.Log = &logger.LoggerConfig{
			Level:      "info",
			Console:    true,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		}
	}
}

func fillSelector(s *SelectorConfig, def SelectorConfig) {
	if s.Attribute == "" || s.Value == "" {
		*s = def
	}
}

// applyEnv 从环境变量覆盖配置
func applyEnv(c *Config) {
	if serial := os.Getenv("CONTACTWING_DEVICE"); serial != "" {
		c.Device.Serial = serial
	}
	if adb := os.Getenv("ADB_PATH"); adb != "" {
		c.Device.ADBPath = adb
	}
	if filter := os.Getenv("CONTACTWING_FILTER"); filter != "" {
		c.Explorer.Filter = filter
	}
}

// SettleDelay 每次操作之后的等待时间
func (e *ExplorerConfig) SettleDelay() time.Duration {
	return time.Duration(e.SettleDelayMs) * time.Millisecond
}

// Backoff 两轮探索之间的等待时间
func (e *ExplorerConfig) Backoff() time.Duration {
	return time.Duration(e.BackoffSeconds) * time.Second
}

// CommandTimeout 单条 adb 命令的超时时间
func (d *DeviceConfig) CommandTimeout() time.Duration {
	return time.Duration(d.CommandTimeoutMs) * time.Millisecond
}
