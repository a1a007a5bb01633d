// Copyright 2025 The Where Is Teemo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// teemo is the Where Is Teemo daemon. It runs the local config
// endpoint and the XMPP relay, and exposes the control surface the
// desktop UI talks to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whereisteemo/teemo"
	"github.com/whereisteemo/teemo/app"
	"github.com/whereisteemo/teemo/pki"
	"github.com/whereisteemo/teemo/region"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "teemo",
		Short: "Appear offline in League of Legends and Valorant",
		Long: `Where Is Teemo interposes a local man-in-the-middle between the
Riot client and the chat servers. Outbound presence is rewritten so
contacts see you as offline while chat keeps working.

To get started:

	- 'teemo trust' installs the local root CA (one-time, prompts).
	- 'teemo run' starts the proxy and the control surface.
	- 'teemo run --game league_of_legends' also launches the game.`,
		PersistentPreRun: func(*cobra.Command, []string) {
			if debug {
				teemo.EnableDebugLog()
			}
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.AddCommand(runCmd(), trustCmd(), regionsCmd())
	return cmd
}

func runCmd() *cobra.Command {
	var (
		game        string
		regionCode  string
		mode        string
		controlAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the proxy and control surface in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, err := app.New()
			if err != nil {
				return err
			}
			if regionCode != "" {
				if err := orch.SetRegion(regionCode); err != nil {
					return err
				}
			}
			if mode != "" {
				m, err := teemo.ParseMode(mode)
				if err != nil {
					return err
				}
				orch.SetStealthMode(m)
			}

			control, err := app.ServeControl(orch, controlAddr)
			if err != nil {
				return err
			}
			fmt.Printf("control surface: http://%s\n", control.Addr())

			if game != "" {
				g, err := teemo.ParseGame(game)
				if err != nil {
					return err
				}
				status := orch.LaunchGame(g)
				if status.ProxyStatus.State == teemo.StateError {
					teemo.Log().Error("launch failed",
						zap.String("reason", status.ProxyStatus.Message))
				}
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			teemo.Log().Info("shutting down")
			orch.StopProxy()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return control.Close(ctx)
		},
	}
	cmd.Flags().StringVar(&game, "game", "", "launch this game immediately (league_of_legends|valorant)")
	cmd.Flags().StringVar(&regionCode, "region", "", "override the effective region (e.g. EUW)")
	cmd.Flags().StringVar(&mode, "mode", "", "initial stealth mode (Online|Offline)")
	cmd.Flags().StringVar(&controlAddr, "control", "127.0.0.1:0", "control surface listen address")
	return cmd
}

func trustCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Install the local root CA into the OS trust store",
		RunE: func(*cobra.Command, []string) error {
			ca, err := pki.EnsureCA()
			if err != nil {
				return err
			}
			if check {
				trusted, err := ca.IsTrusted()
				if err != nil {
					return err
				}
				fmt.Printf("ca fingerprint: %s\ntrusted: %v\n", ca.FingerprintSHA1(), trusted)
				return nil
			}
			if err := ca.Enroll(); err != nil {
				return err
			}
			fmt.Println("root CA trusted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "report trust state without prompting")
	return cmd
}

func regionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the known regions and their chat hosts",
		Run: func(*cobra.Command, []string) {
			for _, r := range region.All() {
				fmt.Printf("%-4s %-24s %s\n", r.Code, r.Name, r.ChatHost)
			}
		},
	}
}
