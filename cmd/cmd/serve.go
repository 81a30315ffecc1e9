// Copyright © 2021 Jonathan Whitaker <jonathan@whitaker.io>

package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	timely "github.com/flowmesh/timely"
)

const (
	processIndexKey = "process.index"
	peerAddrsKey    = "process.peers"
	dialTimeoutKey  = "process.dial_timeout_ms"
	portKey         = "process.port"
	gracePeriodKey  = "process.grace_period_seconds"
)

// serveCmd bootstraps this process's TCP mesh with its peers and serves
// a /health endpoint while the mesh is up. Wiring the resulting
// connections to concrete dataflows and workers is the embedding
// application's job: this command only proves out the process-level
// substrate (spec.md §6 bootstrap, §9's Open Question resolution keeping
// Bootstrap separate from dataflow construction).
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve - bootstraps this process's connections to its peers and serves /health",
	Long: `serve - bootstraps this process's connections to its peers and serves /health

	The following keys are read from $HOME/.timely.yaml:

	process:
		index: 0               # this process's index among its peers
		peers:                 # addr:port of every peer, by index
			- "127.0.0.1:7000"
			- "127.0.0.1:7001"
		dial_timeout_ms: 5000
		port: 8080              # /health listen port
		grace_period_seconds: 10
	`,
	Run: func(cmd *cobra.Command, args []string) {
		index := viper.GetInt(processIndexKey)
		peers := viper.GetStringSlice(peerAddrsKey)
		dialTimeout := time.Duration(viper.GetInt(dialTimeoutKey)) * time.Millisecond
		port := viper.GetInt(portKey)
		gracePeriod := time.Duration(viper.GetInt64(gracePeriodKey)) * time.Second

		if index < 0 || index >= len(peers) {
			fmt.Printf("process index %d out of range for %d peers\n", index, len(peers))
			os.Exit(1)
		}
		_, peerPort, err := net.SplitHostPort(peers[index])
		if err != nil {
			fmt.Printf("error parsing own peer address [%v]\n", err)
			os.Exit(1)
		}
		listenPort, err := strconv.Atoi(peerPort)
		if err != nil {
			fmt.Printf("error parsing own peer port [%v]\n", err)
			os.Exit(1)
		}

		listener, err := newListener(listenPort)
		if err != nil {
			fmt.Printf("error listening [%v]\n", err)
			os.Exit(1)
		}

		conns, err := timely.Bootstrap(listener, index, peers, dialTimeout)
		if err != nil {
			fmt.Printf("error bootstrapping peers [%v]\n", err)
			os.Exit(1)
		}

		app := fiber.New()
		app.Use(recover.New())
		app.Get("/health", func(c *fiber.Ctx) error {
			return c.Status(http.StatusOK).JSON(map[string]interface{}{
				"process_index": index,
				"peer_count":    len(conns),
			})
		})

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt)
		go func() {
			<-quit
			ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
			defer cancel()
			_ = app.ShutdownWithContext(ctx)
		}()

		if err := app.Listen(":" + strconv.Itoa(port)); err != nil {
			fmt.Printf("error running server [%v]\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
