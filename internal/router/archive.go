package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// datedDir caches the <base>/<yyyy>/<MM>/<d> archive directory of the current
// day so it is only created once per calendar day.
type datedDir struct {
	base     string
	now      func() time.Time
	mkdirAll func(string, os.FileMode) error

	mu       sync.Mutex
	year     int
	month    time.Month
	day      int
	current  string
	creation int
}

func newDatedDir(base string) *datedDir {
	return &datedDir{base: base, now: time.Now, mkdirAll: os.MkdirAll}
}

func (d *datedDir) path() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	y, m, day := d.now().Date()
	if d.current != "" && y == d.year && m == d.month && day == d.day {
		return d.current, nil
	}

	p := filepath.Join(d.base, strconv.Itoa(y), fmt.Sprintf("%02d", int(m)), strconv.Itoa(day))
	if err := d.mkdirAll(p, 0o755); err != nil {
		return p, err
	}
	d.year, d.month, d.day = y, m, day
	d.current = p
	d.creation++
	return p, nil
}
