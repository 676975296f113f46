package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/browserwing/contactwing/executor"
	"github.com/browserwing/contactwing/pkg/logger"
)

// CommandResult 命令执行结果
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError adb 命令失败
type CommandError struct {
	Code    string // TIMEOUT, COMMAND_FAILED, COMMAND_NOT_FOUND
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %s", strings.ToLower(strings.ReplaceAll(e.Code, "_", " ")), e.Command)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner 执行外部命令，测试中可替换
type Runner func(ctx context.Context, name string, args ...string) (CommandResult, error)

// ExecRunner 使用 os/exec 执行命令，带超时
func ExecRunner(timeout time.Duration) Runner {
	return func(ctx context.Context, name string, args ...string) (CommandResult, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, args...)
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
		if err == nil {
			return res, nil
		}

		command := strings.TrimSpace(name + " " + strings.Join(args, " "))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, &CommandError{Code: "TIMEOUT", Command: command, Stderr: res.Stderr, Err: ctx.Err()}
		}
		if ee := (*exec.ExitError)(nil); errors.As(err, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, &CommandError{Code: "COMMAND_FAILED", Command: command, Stderr: res.Stderr, Err: err}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return res, &CommandError{Code: "COMMAND_NOT_FOUND", Command: name, Err: err}
		}
		return res, &CommandError{Code: "COMMAND_FAILED", Command: command, Stderr: res.Stderr, Err: err}
	}
}

// ADB 通过 adb 命令操作一台 Android 设备
type ADB struct {
	adbPath   string
	serial    string
	remoteDir string
	run       Runner
	width     int
	height    int
}

var _ executor.Controller = (*ADB)(nil)

// NewADB 创建 adb 控制器
func NewADB(adbPath, serial, remoteDir string, run Runner) *ADB {
	if adbPath == "" {
		adbPath = "adb"
	}
	if remoteDir == "" {
		remoteDir = "/sdcard"
	}
	return &ADB{adbPath: adbPath, serial: serial, remoteDir: remoteDir, run: run}
}

// Serial 设备序列号
func (a *ADB) Serial() string {
	return a.serial
}

func (a *ADB) exec(ctx context.Context, args ...string) (CommandResult, error) {
	full := args
	if a.serial != "" {
		full = append([]string{"-s", a.serial}, args...)
	}
	res, err := a.run(ctx, a.adbPath, full...)
	if err != nil {
		return res, err
	}
	// adb shell 在部分设备上失败时仍返回 0
	if strings.HasPrefix(strings.TrimSpace(res.Stdout), "ERROR") || strings.Contains(res.Stderr, "error:") {
		return res, &CommandError{Code: "COMMAND_FAILED", Command: strings.Join(args, " "), Stderr: res.Stderr + res.Stdout}
	}
	return res, nil
}

func (a *ADB) shell(ctx context.Context, args ...string) (CommandResult, error) {
	return a.exec(ctx, append([]string{"shell"}, args...)...)
}

// Tap 点击坐标
func (a *ADB) Tap(ctx context.Context, x, y int) error {
	_, err := a.shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Swipe 从 (x, y) 开始滑动，距离按屏幕宽度的十分之一计，long 为三倍
func (a *ADB) Swipe(ctx context.Context, x, y int, dir executor.Direction, dist executor.Distance, quick bool) error {
	width, _, err := a.DeviceSize(ctx)
	if err != nil {
		return err
	}
	dx, dy, err := SwipeOffset(width, dir, dist)
	if err != nil {
		return err
	}
	duration := 400
	if quick {
		duration = 100
	}
	_, err = a.shell(ctx, "input", "swipe",
		strconv.Itoa(x), strconv.Itoa(y), strconv.Itoa(x+dx), strconv.Itoa(y+dy), strconv.Itoa(duration))
	return err
}

// SwipeOffset 计算滑动的位移
func SwipeOffset(width int, dir executor.Direction, dist executor.Distance) (int, int, error) {
	unit := width / 10
	switch dist {
	case executor.DistanceLong:
		unit *= 3
	case executor.DistanceShort, "":
	default:
		return 0, 0, fmt.Errorf("unsupported swipe distance: %s", dist)
	}
	switch dir {
	case executor.DirectionUp:
		return 0, -2 * unit, nil
	case executor.DirectionDown:
		return 0, 2 * unit, nil
	default:
		return 0, 0, fmt.Errorf("unsupported swipe direction: %s", dir)
	}
}

// Back 返回键
func (a *ADB) Back(ctx context.Context) error {
	_, err := a.shell(ctx, "input", "keyevent", "KEYCODE_BACK")
	return err
}

var sizePattern = regexp.MustCompile(`(\d+)x(\d+)`)

// ParseWMSize 解析 `wm size` 输出，优先使用 Override size
func ParseWMSize(out string) (int, int, error) {
	var line string
	for _, l := range strings.Split(out, "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "Override size") {
			line = l
			break
		}
		if strings.HasPrefix(l, "Physical size") && line == "" {
			line = l
		}
	}
	m := sizePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, fmt.Errorf("unexpected wm size output: %q", strings.TrimSpace(out))
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w, h, nil
}

// DeviceSize 屏幕分辨率（缓存）
func (a *ADB) DeviceSize(ctx context.Context) (int, int, error) {
	if a.width > 0 && a.height > 0 {
		return a.width, a.height, nil
	}
	res, err := a.shell(ctx, "wm", "size")
	if err != nil {
		return 0, 0, err
	}
	w, h, err := ParseWMSize(res.Stdout)
	if err != nil {
		return 0, 0, err
	}
	a.width, a.height = w, h
	return w, h, nil
}

func (a *ADB) pull(ctx context.Context, remote, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	local := filepath.Join(dir, name)
	if _, err := a.exec(ctx, "pull", remote, local); err != nil {
		return "", err
	}
	// 清理设备上的临时文件，失败不影响结果
	if _, err := a.shell(ctx, "rm", remote); err != nil {
		logger.Debug(ctx, "Failed to remove %s: %v", remote, err)
	}
	return local, nil
}

// CaptureUITree uiautomator dump 并拉取到本地
func (a *ADB) CaptureUITree(ctx context.Context, prefix, dir string) (string, error) {
	name := prefix + ".xml"
	remote := path.Join(a.remoteDir, name)
	if _, err := a.shell(ctx, "uiautomator", "dump", remote); err != nil {
		return "", err
	}
	return a.pull(ctx, remote, dir, name)
}

// CaptureScreenshot screencap 并拉取到本地
func (a *ADB) CaptureScreenshot(ctx context.Context, prefix, dir string) (string, error) {
	name := prefix + ".png"
	remote := path.Join(a.remoteDir, name)
	if _, err := a.shell(ctx, "screencap", "-p", remote); err != nil {
		return "", err
	}
	return a.pull(ctx, remote, dir, name)
}

// RestartApp 强制停止后通过 monkey 启动应用的 launcher activity
func (a *ADB) RestartApp(ctx context.Context, pkg string) error {
	if _, err := a.shell(ctx, "am", "force-stop", pkg); err != nil {
		return err
	}
	_, err := a.shell(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	return err
}
