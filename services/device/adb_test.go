package device

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/browserwing/contactwing/config"
	"github.com/browserwing/contactwing/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	calls   []string
	outputs map[string]CommandResult
	fail    map[string]error
}

func (r *recordingRunner) run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, call)
	for key, err := range r.fail {
		if strings.Contains(call, key) {
			return CommandResult{}, err
		}
	}
	for key, out := range r.outputs {
		if strings.Contains(call, key) {
			return out, nil
		}
	}
	return CommandResult{}, nil
}

func TestParseWMSize(t *testing.T) {
	w, h, err := ParseWMSize("Physical size: 1080x2400\n")
	require.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 2400, h)

	w, h, err = ParseWMSize("Physical size: 1440x3200\nOverride size: 1080x2400\n")
	require.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 2400, h)

	_, _, err = ParseWMSize("garbage")
	require.Error(t, err)
}

func TestParseDevicesAndSelect(t *testing.T) {
	out := "* daemon started successfully\nList of devices attached\nemulator-5554\tdevice\nR58M123\toffline\n\n"
	devices := ParseDevices(out)
	require.Len(t, devices, 2)
	assert.Equal(t, DeviceInfo{Serial: "emulator-5554", State: "device"}, devices[0])

	serial, err := SelectDevice(devices, "")
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", serial)

	_, err = SelectDevice(devices, "R58M123")
	require.Error(t, err, "offline device cannot be selected")

	_, err = SelectDevice(nil, "")
	require.Error(t, err)

	_, err = SelectDevice(append(devices, DeviceInfo{Serial: "abc", State: "device"}), "")
	require.Error(t, err)
}

func TestSwipeOffset(t *testing.T) {
	dx, dy, err := SwipeOffset(1080, executor.DirectionUp, executor.DistanceLong)
	require.NoError(t, err)
	assert.Equal(t, 0, dx)
	assert.Equal(t, -648, dy)

	_, dy, err = SwipeOffset(1080, executor.DirectionDown, executor.DistanceShort)
	require.NoError(t, err)
	assert.Equal(t, 216, dy)

	_, _, err = SwipeOffset(1080, "left", executor.DistanceShort)
	require.Error(t, err)
}

func TestADBCommands(t *testing.T) {
	r := &recordingRunner{outputs: map[string]CommandResult{
		"wm size": {Stdout: "Physical size: 1000x2000\n"},
	}}
	adb := NewADB("adb", "emulator-5554", "/sdcard", r.run)
	ctx := context.Background()

	require.NoError(t, adb.Tap(ctx, 10, 20))
	require.NoError(t, adb.Swipe(ctx, 500, 1000, executor.DirectionUp, executor.DistanceLong, true))
	require.NoError(t, adb.Back(ctx))
	require.NoError(t, adb.RestartApp(ctx, "com.tencent.mobileqq"))

	assert.Equal(t, []string{
		"adb -s emulator-5554 shell input tap 10 20",
		"adb -s emulator-5554 shell wm size",
		"adb -s emulator-5554 shell input swipe 500 1000 500 400 100",
		"adb -s emulator-5554 shell input keyevent KEYCODE_BACK",
		"adb -s emulator-5554 shell am force-stop com.tencent.mobileqq",
		"adb -s emulator-5554 shell monkey -p com.tencent.mobileqq -c android.intent.category.LAUNCHER 1",
	}, r.calls)
}

func TestCaptureUITreePullsIntoDir(t *testing.T) {
	r := &recordingRunner{}
	adb := NewADB("adb", "", "/sdcard", r.run)
	dir := filepath.Join(t.TempDir(), "xml")

	path, err := adb.CaptureUITree(context.Background(), "2024-01-01_00-00-00_001", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-01-01_00-00-00_001.xml"), path)
	assert.Equal(t, "adb shell uiautomator dump /sdcard/2024-01-01_00-00-00_001.xml", r.calls[0])
	assert.Equal(t, "adb pull /sdcard/2024-01-01_00-00-00_001.xml "+path, r.calls[1])
}

func TestCaptureFailsOnShellError(t *testing.T) {
	r := &recordingRunner{outputs: map[string]CommandResult{
		"uiautomator": {Stdout: "ERROR: null root node returned by UiTestAutomationBridge."},
	}}
	adb := NewADB("adb", "", "", r.run)

	_, err := adb.CaptureUITree(context.Background(), "x", t.TempDir())
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, r.calls, 1)
}

func TestConnectSelectsOnlyDevice(t *testing.T) {
	r := &recordingRunner{outputs: map[string]CommandResult{
		"adb devices": {Stdout: "List of devices attached\nemulator-5554\tdevice\n"},
		"wm size":     {Stdout: "Physical size: 1080x2400\n"},
	}}
	adb, err := Connect(context.Background(), &config.DeviceConfig{ADBPath: "adb"}, r.run)
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", adb.Serial())

	r = &recordingRunner{fail: map[string]error{"devices": errors.New("adb missing")}}
	_, err = Connect(context.Background(), &config.DeviceConfig{ADBPath: "adb"}, r.run)
	require.Error(t, err)
}

func TestCropImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	src := image.NewRGBA(image.Rect(0, 0, 100, 200))
	for x := 20; x < 60; x++ {
		for y := 50; y < 150; y++ {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	require.NoError(t, CropImage(path, executor.Rect{X1: 20, Y1: 50, X2: 60, Y2: 150}))

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cropped, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cropped.Bounds().Dx())
	assert.Equal(t, 100, cropped.Bounds().Dy())
	r, _, _, _ := cropped.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestCropImageRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("error: device offline"), 0o644))
	require.Error(t, CropImage(path, executor.Rect{X2: 1, Y2: 1}))
}
