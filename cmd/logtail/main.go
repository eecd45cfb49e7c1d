// logtail - живая таблица логов вебхуков в терминале
//
// Подключается к SSE потоку сервера (/api/logs/stream или
// /webhook-stream для админа) и перерисовывает таблицу при
// появлении новых записей. Потеря фокуса терминала закрывает
// поток, возврат фокуса открывает его снова.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"tradehook/internal/client"
	"tradehook/internal/client/logstream"
	"tradehook/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "logtail:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	server := flag.String("server", envOr("TRADEHOOK_URL", "http://localhost:8080"), "server base URL")
	userID := flag.Int("user", cast.ToInt(os.Getenv("TRADEHOOK_USER_ID")), "user id sent in X-User-ID")
	admin := flag.Bool("admin", false, "stream all users' logs (requires admin credentials)")
	adminUser := flag.String("admin-user", os.Getenv("ADMIN_USERNAME"), "admin username")
	adminPassword := flag.String("admin-password", os.Getenv("ADMIN_PASSWORD"), "admin password")
	logFile := flag.String("log", envOr("LOGTAIL_LOG", "logtail.log"), "log file (the terminal is taken by the UI)")
	flag.Parse()

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:      "info",
		Format:     "json",
		Output:     *logFile,
		MaxSizeMB:  10,
		MaxBackups: 1,
	})
	defer logger.Sync()

	opts := client.Options{BaseURL: *server, UserID: *userID}
	path := "/api/logs/stream"
	title := fmt.Sprintf("tradehook logs (user %d)", *userID)
	if *admin {
		opts.AdminUsername = *adminUser
		opts.AdminPassword = *adminPassword
		path = "/webhook-stream"
		title = "tradehook logs (all users)"
	} else if *userID <= 0 {
		return fmt.Errorf("-user is required without -admin")
	}

	api := client.New(opts)
	box := newMailbox()
	sub := logstream.New(logstream.APIDialer(api, path), box, logstream.Config{Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub.Start(ctx)
	defer sub.Close()

	p := tea.NewProgram(newModel(title, sub, box), tea.WithAltScreen(), tea.WithReportFocus())
	_, err := p.Run()
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
