// layachat-tui is a terminal chat client for the Laya claims adjudication
// service. It submits claims over the streaming channel (falling back to the
// synchronous API when the stream fails) and renders the agent pipeline's
// progress live, inferred from the trace lines the backend emits.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sudeeparyan/Laya-sub000/internal/claimsapi"
	"github.com/Sudeeparyan/Laya-sub000/internal/config"
	"github.com/Sudeeparyan/Laya-sub000/internal/logging"
	"github.com/Sudeeparyan/Laya-sub000/internal/session"
	"github.com/Sudeeparyan/Laya-sub000/internal/transport"
)

type appConfig struct {
	config.Config
	altScreen bool
}

func parseFlags() appConfig {
	cfg := appConfig{Config: config.Load(), altScreen: true}

	flag.StringVar(&cfg.BaseURL, "api", cfg.BaseURL, "adjudication service base URL")
	flag.StringVar(&cfg.MemberID, "member", cfg.MemberID, "member id to claim for")
	flag.StringVar(&cfg.SnapshotPath, "history", cfg.SnapshotPath, "chat history file (empty disables persistence)")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "debug log file (empty disables logging)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug log level")
	flag.BoolVar(&cfg.altScreen, "altscreen", cfg.altScreen, "use the terminal alternate screen")
	wait := flag.Int("wait", int(cfg.ResultWait/time.Second), "seconds to wait for a streamed result before falling back")
	flag.Parse()

	cfg.ResultWait = time.Duration(*wait) * time.Second
	return cfg
}

func main() {
	cfg := parseFlags()

	logger, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "layachat: %v\n", err)
		os.Exit(1)
	}

	client := transport.NewClient(cfg.BaseURL, cfg.ResultWait, logger)
	api := claimsapi.NewClient(cfg.BaseURL, cfg.AuthToken, logger)
	store := session.NewStore(client, cfg.SnapshotPath, logger)
	if _, ok := store.Active(); !ok {
		store.NewSession()
	}

	opts := []tea.ProgramOption{}
	if cfg.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	program := tea.NewProgram(newModel(cfg, store, api, logger), opts...)
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "layachat: %v\n", err)
		os.Exit(1)
	}
	store.Save()
}
