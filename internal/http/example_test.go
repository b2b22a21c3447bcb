package http_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corethink/internal/config"
	httpserver "github.com/fyrsmithlabs/corethink/internal/http"
	"github.com/fyrsmithlabs/corethink/internal/orchestrator"
	"github.com/fyrsmithlabs/corethink/internal/services"
)

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	cfg := config.Default()
	cfg.Audit.Enabled = false

	reg, err := services.Build(cfg, services.BuildOptions{})
	if err != nil {
		panic(err)
	}

	logger := zap.NewNop()
	server, err := httpserver.NewServer(orchestrator.New(reg), logger, &httpserver.Config{
		Host: "localhost",
		Port: 19090,
	})
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
