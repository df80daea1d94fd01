package cmd

import (
	"encoding/json"
	"fmt"
	"gamewarden/internal/cli/ui"
	"gamewarden/pkg/sdk"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage game servers",
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured servers",
	Run: func(cmd *cobra.Command, args []string) {
		handleList()
	},
}

var serverStartCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Scale a server up",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(Client.StartServer, args[0])
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop [name]",
	Short: "Scale a server down without saving",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(Client.StopServer, args[0])
	},
}

var serverGracefulStopCmd = &cobra.Command{
	Use:     "graceful-stop [name]",
	Aliases: []string{"shutdown"},
	Short:   "Save the world, shut the server down and scale it to zero",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(Client.GracefulStopServer, args[0])
	},
}

var historyLimit int

var serverHistoryCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show recent operations for a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleHistory(args[0], historyLimit)
	},
}

var serverEventsCmd = &cobra.Command{
	Use:   "events [name]",
	Short: "Stream lifecycle events for a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleEvents(args[0])
	},
}

var serverConsoleCmd = &cobra.Command{
	Use:   "console [name]",
	Short: "Open an interactive RCON console",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ui.RunConsole(Client, args[0])
	},
}

var operationCmd = &cobra.Command{
	Use:   "operation [id]",
	Short: "Show a recorded operation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		op, err := Client.GetOperation(args[0])
		if err != nil {
			log.Fatalf("Error fetching operation: %v", err)
		}
		fmt.Println(ui.FormatResult(op))
	},
}

func init() {
	serverHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of operations to show")

	serverCmd.AddCommand(serverListCmd, serverStartCmd, serverStopCmd, serverGracefulStopCmd,
		serverHistoryCmd, serverEventsCmd, serverConsoleCmd)
	RootCmd.AddCommand(serverCmd, operationCmd)
}

func handleList() {
	servers, err := Client.ListServers()
	if err != nil {
		log.Fatalf("Error listing servers: %v", err)
	}

	if len(servers) == 0 {
		fmt.Println("No servers configured.")
		return
	}
	fmt.Println("Servers:")
	for _, s := range servers {
		state := "idle"
		if s.Busy {
			state = s.Intent + " in progress"
		}
		fmt.Printf("- %s (%s) [%s]\n", s.Name, s.Region, state)
	}
}

// runOperation prints the outcome and exits non-zero unless it completed.
func runOperation(call func(string) (*sdk.OperationResult, error), name string) {
	res, err := call(name)
	if res != nil {
		fmt.Println(ui.FormatResult(res))
	}
	if err != nil {
		if res == nil {
			log.Fatalf("Error: %v", err)
		}
		os.Exit(1)
	}
}

func handleHistory(name string, limit int) {
	ops, err := Client.ListOperations(name, limit)
	if err != nil {
		log.Fatalf("Error fetching history: %v", err)
	}
	if len(ops) == 0 {
		fmt.Printf("No operations recorded for %s.\n", name)
		return
	}
	for _, op := range ops {
		line := fmt.Sprintf("%s  %-13s %-9s %s", op.StartedAt.Local().Format("2006-01-02 15:04:05"), op.Intent, op.Status, op.ID)
		if op.Error != "" {
			line += "  " + op.Error
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
}

func handleEvents(name string) {
	wsURL, err := Client.EventsURL(name)
	if err != nil {
		log.Fatal("Error parsing base URL:", err)
	}

	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Error connecting to event stream: %v", err)
	}
	defer c.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				return
			}
			var ev sdk.Event
			if err := json.Unmarshal(message, &ev); err != nil {
				continue
			}
			fmt.Println(ui.FormatEvent(ev))
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
