package device

import (
	"context"
	"strings"

	"github.com/browserwing/contactwing/config"
	"github.com/browserwing/contactwing/pkg/logger"
	"github.com/pkg/errors"
)

// DeviceInfo adb devices 中的一行
type DeviceInfo struct {
	Serial string `json:"serial"`
	State  string `json:"state"`
}

// ParseDevices 解析 `adb devices` 输出
func ParseDevices(out string) []DeviceInfo {
	var devices []DeviceInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, DeviceInfo{Serial: fields[0], State: fields[1]})
	}
	return devices
}

// ListDevices 列出已连接的设备
func ListDevices(ctx context.Context, adbPath string, run Runner) ([]DeviceInfo, error) {
	res, err := run(ctx, adbPath, "devices")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}
	return ParseDevices(res.Stdout), nil
}

// SelectDevice 选择要使用的设备：指定序列号时必须在线，否则仅有一台在线设备时自动选择
func SelectDevice(devices []DeviceInfo, serial string) (string, error) {
	var online []string
	for _, d := range devices {
		if d.State == "device" {
			online = append(online, d.Serial)
		}
	}
	if serial != "" {
		for _, s := range online {
			if s == serial {
				return s, nil
			}
		}
		return "", errors.Errorf("device %s not found or offline", serial)
	}
	switch len(online) {
	case 0:
		return "", errors.Errorf("no device found")
	case 1:
		return online[0], nil
	default:
		return "", errors.Errorf("multiple devices found (%s), please choose one with -device", strings.Join(online, ", "))
	}
}

// Connect 根据配置选择设备并创建 adb 控制器
func Connect(ctx context.Context, cfg *config.DeviceConfig, run Runner) (*ADB, error) {
	if run == nil {
		run = ExecRunner(cfg.CommandTimeout())
	}
	devices, err := ListDevices(ctx, cfg.ADBPath, run)
	if err != nil {
		return nil, err
	}
	serial, err := SelectDevice(devices, cfg.Serial)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Device selected: %s", serial)

	adb := NewADB(cfg.ADBPath, serial, cfg.RemoteDir, run)
	w, h, err := adb.DeviceSize(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query device size")
	}
	logger.Info(ctx, "Screen size: %dx%d", w, h)
	return adb, nil
}
