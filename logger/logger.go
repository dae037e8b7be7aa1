// Package logger provides adapters for popular logger libraries to work with mvtree's Logger interface.
//
// The adapters allow you to use your existing logger with mvtree without writing boilerplate.
// Note that the standard library's slog.Logger already implements mvtree.Logger directly.
//
// Example with zap:
//
//	import (
//	    "github.com/alexhholmes/mvtree"
//	    "github.com/alexhholmes/mvtree/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//	    log := logger.NewZap(zapLogger)
//
//	    mgr := mvtree.NewManager(mvtree.WithManagerLogger(log))
//	    defer mgr.Close()
//
//	    tree := mvtree.New[int, string](mvtree.WithLogger(log))
//	    _ = mgr.Update(func(tx *mvtree.Tx) error {
//	        return tree.Insert(tx, 1, "one")
//	    })
//	}
package logger
