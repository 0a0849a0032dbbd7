/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package filepreserver rotates and prunes a growing file (request logs,
// access logs) on a schedule, the way nabbar-golib/logger/hookfile runs a
// ticker-driven background goroutine flushing to a file, generalized here
// to drive rename-based rotation and count/size-based retention instead
// of buffered writes.
package filepreserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
	"github.com/danfuzz/lactoserv-sub004/rtlog"
	"github.com/danfuzz/lactoserv-sub004/threadlet"
)

const (
	ErrorRotateFailed rterr.CodeError = iota + rterr.MinPkgFilePreserver
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgFilePreserver, func(code rterr.CodeError) string {
		switch code {
		case ErrorRotateFailed:
			return "failed to rotate preserved file"
		}
		return ""
	})
}

// Triggers selects which lifecycle transitions force a rotation before
// the transition proceeds.
type Triggers struct {
	OnStart  bool
	OnStop   bool
	OnReload bool
}

// Config configures a Preserver.
type Config struct {
	// Path is the file being preserved; rotated copies live alongside it.
	Path string
	// AtSize, when > 0, makes the scheduler rotate once Path's size grows
	// to at least this many bytes. Zero disables size-triggered rotation
	// entirely, in which case CheckPeriod is never consulted (§4.11:
	// "ignored when atSize not set").
	AtSize int64
	// CheckPeriod is how often the scheduler re-checks AtSize; meaningless
	// when AtSize is unset. Defaults to five minutes.
	CheckPeriod time.Duration
	// MaxOldCount is the maximum number of rotated files retained; 0
	// means unbounded.
	MaxOldCount int
	// MaxOldSize bounds the total bytes of rotated files retained; 0
	// means unbounded.
	MaxOldSize int64
	Triggers   Triggers
	Log        rtlog.FuncLog
	// Events, if set, receives rotatedTo/deleted occurrences (§6's
	// event-emission surface). A nil Events is a no-op, same as a nil Log.
	Events *eventchain.EventSource[rtevent.Event]
}

// Preserver rotates Path on demand or on a schedule and prunes old
// rotations past the configured retention limits.
type Preserver struct {
	cfg Config
	tl  threadlet.Threadlet

	rotateNow chan struct{}

	lastInfix string
	lastCount int
}

// New builds a Preserver; call Start to launch its scheduler.
func New(cfg Config) *Preserver {
	if cfg.CheckPeriod <= 0 {
		cfg.CheckPeriod = 5 * time.Minute
	}
	p := &Preserver{cfg: cfg, rotateNow: make(chan struct{}, 1)}
	p.tl = threadlet.New(nil, p.mainBody)
	return p
}

// Start launches the scheduling loop. isReload triggers an immediate
// rotation first when Config.Triggers.OnReload is set.
func (p *Preserver) Start(ctx context.Context, isReload bool) rterr.Error {
	if isReload && p.cfg.Triggers.OnReload {
		p.rotate()
	} else if !isReload && p.cfg.Triggers.OnStart {
		p.rotate()
	}
	return p.tl.Start(ctx)
}

// Stop halts the scheduling loop, rotating first when configured to.
// OnStop only fires on a genuine stop, never ahead of a reload's Start.
func (p *Preserver) Stop(ctx context.Context, willReload bool) rterr.Error {
	if !willReload && p.cfg.Triggers.OnStop {
		p.rotate()
	}
	return p.tl.Stop(ctx)
}

// RotateNow requests an out-of-band rotation at the scheduler's next
// opportunity, without waiting for CheckPeriod to elapse.
func (p *Preserver) RotateNow() {
	select {
	case p.rotateNow <- struct{}{}:
	default:
	}
}

func (p *Preserver) mainBody(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.CheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.rotateNow:
			p.rotate()
		case <-ticker.C:
			if p.cfg.AtSize > 0 && p.sizeAtOrAbove(p.cfg.AtSize) {
				p.rotate()
			}
		}
	}
}

// sizeAtOrAbove reports whether Path currently exists and is at least n
// bytes. A missing file is never considered "at size".
func (p *Preserver) sizeAtOrAbove(n int64) bool {
	info, err := os.Stat(p.cfg.Path)
	if err != nil {
		return false
	}
	return info.Size() >= n
}

func (p *Preserver) log() rtlog.Logger {
	return rtlog.Safe(p.cfg.Log).WithField("path", p.cfg.Path)
}

func (p *Preserver) emit(kind rtevent.Kind, path string) {
	if p.cfg.Events == nil {
		return
	}
	_, _ = p.cfg.Events.Emit(rtevent.Event{
		Kind:     kind,
		At:       time.Now().UTC(),
		Endpoint: p.cfg.Path,
		Detail:   path,
	})
}

// rotate renames Path to a birthtime-stamped sibling, then applies
// retention. Errors are logged, never fatal: a stuck rotation must not
// take down the endpoint serving the file.
func (p *Preserver) rotate() {
	if err := p.doRotate(); err != nil {
		if os.IsNotExist(err) {
			return
		}
		p.log().Entry(logrus.WarnLevel, "rotation failed").ErrorAdd(err).Log()
	}
	if err := p.enforceRetention(); err != nil {
		p.log().Entry(logrus.WarnLevel, "retention sweep failed").ErrorAdd(err).Log()
	}
}

func (p *Preserver) doRotate() error {
	info, err := os.Stat(p.cfg.Path)
	if err != nil {
		return err
	}

	birth := birthTime(info).UTC()
	infix := birth.Format("20060102")

	dir := filepath.Dir(p.cfg.Path)
	base := filepath.Base(p.cfg.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	count := 0
	if p.lastInfix == infix {
		count = p.lastCount + 1
	}

	var target string
	for {
		name := fmt.Sprintf("%s-%s%s", stem, infix, ext)
		if count > 0 {
			name = fmt.Sprintf("%s-%s-%d%s", stem, infix, count, ext)
		}
		target = filepath.Join(dir, name)
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		count++
	}

	if err := os.Rename(p.cfg.Path, target); err != nil {
		return err
	}

	p.lastInfix = infix
	p.lastCount = count
	p.emit(rtevent.KindRotatedTo, target)
	return nil
}

type rotatedFile struct {
	path  string
	birth time.Time
	size  int64
}

// enforceRetention deletes rotated files beyond MaxOldCount/MaxOldSize,
// oldest first.
func (p *Preserver) enforceRetention() error {
	if p.cfg.MaxOldCount <= 0 && p.cfg.MaxOldSize <= 0 {
		return nil
	}

	dir := filepath.Dir(p.cfg.Path)
	base := filepath.Base(p.cfg.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	prefix := stem + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var files []rotatedFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{
			path:  filepath.Join(dir, e.Name()),
			birth: birthTime(info),
			size:  info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].birth.After(files[j].birth) })

	var count int
	var total int64
	for _, f := range files {
		count++
		total += f.size

		overCount := p.cfg.MaxOldCount > 0 && count > p.cfg.MaxOldCount
		overSize := p.cfg.MaxOldSize > 0 && total > p.cfg.MaxOldSize

		if overCount || overSize {
			if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
				return err
			}
			p.emit(rtevent.KindDeleted, f.path)
		}
	}

	return nil
}

// birthTime approximates a file's creation time with its modification
// time: os.FileInfo carries no portable birthtime field, and the
// syscall-level escape hatch (Stat_t.Birthtimespec / equivalents) is not
// available uniformly across the platforms this module targets.
func birthTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
