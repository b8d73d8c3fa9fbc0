package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/badgrhq/badgr-server/badgr/app"
)

var (
	versionName = ""
	commitSHA   = ""
	buildTime   = ""
)

func main() {
	configPath := flag.String("c", "config.ini", "config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	buildInfo := app.BuildInfo{
		RuntimeVer: runtime.Version(),
		BinVersion: versionName,
		CommitSHA:  commitSHA,
		BuildTime:  buildTime,
		BuildArch:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	application, err := app.New(ctx, *configPath, buildInfo)
	if err != nil {
		fmt.Fprintln(os.Stderr, "badgr:", err)
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		_ = application.Shutdown(context.Background())
		fmt.Fprintln(os.Stderr, "badgr:", err)
		os.Exit(1)
	}

	serveErr := application.Wait()
	if serveErr != nil {
		application.Logger.Error("http server stopped", "error", serveErr)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), application.Config.GetSeconds("ShutdownTimeoutSec"))
	defer cancelShutdown()
	if err := application.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, "badgr: shutdown:", err)
	}
	if serveErr != nil {
		os.Exit(1)
	}
}
