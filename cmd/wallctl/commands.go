// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/safehtml-demo/wall/internal/client"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/render"
	"github.com/safehtml-demo/wall/internal/wall"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	variant   = render.Fixed
	logLevel  string
	timeout   time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wallctl",
		Short:         "Read and write walls on a wall server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the wall server")
	root.PersistentFlags().Var(&variant, "variant", "how items are rendered: fixed, insecure or overescaping")
	root.PersistentFlags().StringVar(&logLevel, "log_level", "", "minimum log severity, e.g. debug")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout of each request")

	root.AddCommand(newCmd(), getCmd(), postCmd(), watchCmd(), previewCmd())
	root.SetOut(os.Stdout)
	return root
}

func httpClient() *http.Client {
	return &http.Client{Timeout: timeout}
}

// newClient returns a client for the wall with the given nonce.
func newClient(nonce string) (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:    serverURL,
		Nonce:      nonce,
		Renderer:   render.MustNew(variant),
		HTTPClient: httpClient(),
	})
}

// new: create a wall and print its nonce.
func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a wall and print its nonce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nonce, err := client.NewWall(cmd.Context(), httpClient(), serverURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nonce)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s/%s/wall\n", strings.TrimSuffix(serverURL, "/"), nonce)
			return nil
		},
	}
}

// get <nonce>: print the items of a wall.
func getCmd() *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "get <nonce>",
		Short: "Print the items of a wall",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Load(cmd.Context()); err != nil {
				return err
			}
			return printPage(cmd.OutOrStdout(), c, asHTML)
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the rendered items instead of their text")
	return cmd
}

// post <nonce> <html>: add an item to a wall.
func postCmd() *cobra.Command {
	var at wall.Point
	cmd := &cobra.Command{
		Use:   "post <nonce> <html>",
		Short: "Add an item to a wall",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			if _, err := c.Post(cmd.Context(), args[1], at); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "posted; wall is at version %d\n", c.Version())
			return nil
		},
	}
	cmd.Flags().Int32Var(&at.XPercent, "x", 50, "horizontal position, as a percentage of the wall's width")
	cmd.Flags().Int32Var(&at.YPercent, "y", 50, "vertical position, as a percentage of the wall's height")
	return cmd
}

// watch <nonce>: print a wall each time it changes.
func watchCmd() *cobra.Command {
	var (
		period time.Duration
		asHTML bool
	)
	cmd := &cobra.Command{
		Use:   "watch <nonce>",
		Short: "Print a wall each time it changes, until interrupted or the wall is gone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if period < time.Millisecond {
				return fmt.Errorf("period %s is too short", period)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			c, err := newClient(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Load(ctx); err != nil {
				return err
			}
			if err := printPage(cmd.OutOrStdout(), c, asHTML); err != nil {
				return err
			}
			var orphaned atomic.Bool
			out := cmd.OutOrStdout()
			p := c.Watch(ctx, period, func(int32) {
				if err := printPage(out, c, asHTML); err != nil {
					log.Error(ctx, err)
				}
			}, func(err error) {
				if errors.Is(err, client.ErrOrphaned) {
					orphaned.Store(true)
					return
				}
				log.Warning(ctx, err)
			})
			<-p.Done()
			if orphaned.Load() {
				return client.ErrOrphaned
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&period, "period", client.DefaultPollPeriod, "how often to poll")
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the rendered items instead of their text")
	return cmd
}

// preview <html>: print what an item would look like while being typed.
func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <html>",
		Short: "Print the editor preview of an item without posting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := client.NewPage(render.MustNew(variant))
			defer p.Close()
			p.SetDraft(args[0])
			if !p.WaitPreview(5 * time.Second) {
				return errors.New("preview was not drawn")
			}
			h, err := p.PreviewHTML()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func printPage(w io.Writer, c *client.Client, asHTML bool) error {
	fmt.Fprintf(w, "# version %d\n", c.Version())
	if asHTML {
		h, err := c.Page().ItemsHTML()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, h)
		return err
	}
	for _, s := range c.Page().Items() {
		fmt.Fprintln(w, s)
	}
	return nil
}
