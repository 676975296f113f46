package executor

import (
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
)

var boundsPattern = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// ParseSnapshot 解析 uiautomator 导出的 xml，按文档顺序展开所有节点
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse ui tree: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("ui tree has no root element")
	}

	snap := &Snapshot{}
	collectElements(root, &snap.Elements)
	return snap, nil
}

// LoadSnapshot 从文件解析快照
func LoadSnapshot(path string) (*Snapshot, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to parse ui tree %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("ui tree %s has no root element", path)
	}

	snap := &Snapshot{Path: path}
	collectElements(root, &snap.Elements)
	return snap, nil
}

func collectElements(el *etree.Element, out *[]Element) {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		attrs[a.Key] = a.Value
	}
	*out = append(*out, Element{Index: len(*out), Tag: el.Tag, Attrs: attrs})
	for _, child := range el.ChildElements() {
		collectElements(child, out)
	}
}

// FindElements 返回属性 attr 等于 value 的所有元素，保持文档顺序
func FindElements(snap *Snapshot, attr, value string) []Element {
	if snap == nil {
		return nil
	}
	var matched []Element
	for _, el := range snap.Elements {
		if v, ok := el.Attrs[attr]; ok && v == value {
			matched = append(matched, el)
		}
	}
	return matched
}

// Find 按选择器查找元素
func Find(snap *Snapshot, sel Selector) []Element {
	return FindElements(snap, sel.Attr, sel.Value)
}

// Bounds 解析 bounds 属性
func (e Element) Bounds() (Rect, error) {
	raw := e.Attrs["bounds"]
	m := boundsPattern.FindStringSubmatch(raw)
	if m == nil {
		return Rect{}, &MalformedBoundsError{Bounds: raw}
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Rect{}, &MalformedBoundsError{Bounds: raw}
		}
		v[i] = n
	}
	r := Rect{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if r.X2 < r.X1 || r.Y2 < r.Y1 {
		return Rect{}, &MalformedBoundsError{Bounds: raw}
	}
	return r, nil
}

// Center 元素中心坐标（向下取整）
func (e Element) Center() (int, int, error) {
	r, err := e.Bounds()
	if err != nil {
		return 0, 0, err
	}
	x, y := r.Center()
	return x, y, nil
}

// Center 边界中心坐标（向下取整）
func (r Rect) Center() (int, int) {
	return floorDiv(r.X1+r.X2, 2), floorDiv(r.Y1+r.Y2, 2)
}

// Width 宽度
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height 高度
func (r Rect) Height() int { return r.Y2 - r.Y1 }

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
