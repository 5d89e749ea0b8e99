package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by every package.
const (
	KeyTask       = "task"
	KeyPipeline   = "pipeline"
	KeyRunID      = "run_id"
	KeyBinding    = "binding"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyKind       = "kind"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyAddr       = "addr"
	KeyError      = "error"
)

func Task(name string) slog.Attr       { return slog.String(KeyTask, name) }
func Pipeline(name string) slog.Attr   { return slog.String(KeyPipeline, name) }
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Binding(name string) slog.Attr    { return slog.String(KeyBinding, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func Addr(addr string) slog.Attr       { return slog.String(KeyAddr, addr) }

// Duration reports d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
