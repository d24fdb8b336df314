package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var (
		addr  string
		types []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream motion and hit events from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(addr, types)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:8080", "control server address")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "only show these event types")
	return cmd
}

type watchedEvent struct {
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

var eventColors = map[string]*color.Color{
	"status":        color.New(color.FgHiBlack),
	"motion_start":  color.New(color.FgGreen),
	"motion_finish": color.New(color.FgBlue),
	"hit":           color.New(color.FgYellow),
	"speak_end":     color.New(color.FgMagenta),
	"destroy":       color.New(color.FgRed),
}

func watch(addr string, types []string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/events"}
	if len(types) > 0 {
		u.RawQuery = url.Values{"types": {strings.Join(types, ",")}}.Encode()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.String(), err)
	}
	defer conn.Close()
	fmt.Printf("watching %s\n", u.String())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			var ev watchedEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				fmt.Printf("%s\n", data)
				continue
			}
			c, ok := eventColors[ev.Type]
			if !ok {
				c = color.New(color.Reset)
			}
			fmt.Printf("%s %s %s\n", ev.Time.Format("15:04:05.000"), c.Sprintf("%-13s", ev.Type), ev.Data)
		}
	}()

	select {
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	case <-interrupt:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return nil
	}
}
