package ast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Slog wraps a Node as a slog.LogValuer so that it is only rendered
// if the record is actually emitted
func Slog(n Node) slog.LogValuer {
	return nodeLogValuer{n}
}

type nodeLogValuer struct{ Node }

func (l nodeLogValuer) LogValue() slog.Value {
	kind := strings.TrimPrefix(fmt.Sprintf("%T", l.Node), "*ast.")
	attrs := []slog.Attr{
		slog.String("kind", kind),
		slog.String("at", RangeOf(l.Node).String()),
	}
	if e, ok := l.Node.(Expr); ok {
		attrs = append(attrs, slog.String("src", Format(e)))
	}
	return slog.GroupValue(attrs...)
}

// NodeHandler is a slog.Handler that lazily renders any Node attribute
func NodeHandler(underlying slog.Handler) slog.Handler {
	return &nodeLogHandler{underlying: underlying}
}

func NodeLogger(underlying *slog.Logger) *slog.Logger {
	return slog.New(NodeHandler(underlying.Handler()))
}

type nodeLogHandler struct {
	underlying slog.Handler
}

func wrapAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindAny {
		if n, isNode := attr.Value.Any().(Node); isNode {
			attr.Value = slog.AnyValue(Slog(n))
		}
	}
	return attr
}

func (l *nodeLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *nodeLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		newRecord.AddAttrs(wrapAttr(attr))
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *nodeLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		wrapped[i] = wrapAttr(attr)
	}
	return NodeHandler(l.underlying.WithAttrs(wrapped))
}

func (l *nodeLogHandler) WithGroup(name string) slog.Handler {
	return NodeHandler(l.underlying.WithGroup(name))
}
