package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const closeGracePeriod = time.Second

func newPublishCmd(opts *options) *cobra.Command {
	var channels []string

	cmd := &cobra.Command{
		Use:   "publish [MESSAGE...]",
		Short: "Publish messages to one or more channels",
		Long: "publish sends each argument as a message. Without arguments it reads\n" +
			"standard input and sends one message per non-empty line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial(cmd.Context(), opts, "publisher", channels)
			if err != nil {
				return err
			}
			defer conn.Close()

			send := func(msg string) error {
				return conn.WriteMessage(websocket.TextMessage, []byte(msg))
			}

			if len(args) > 0 {
				for _, msg := range args {
					if err := send(msg); err != nil {
						return fmt.Errorf("send: %w", err)
					}
				}
			} else if err := sendLines(cmd.Context(), cmd.InOrStdin(), send); err != nil {
				return err
			}

			return closeGracefully(conn)
		},
	}
	cmd.Flags().StringSliceVar(&channels, "channels", nil, "channel ids to publish to")
	_ = cmd.MarkFlagRequired("channels")
	return cmd
}

func newSubscribeCmd(opts *options) *cobra.Command {
	var (
		channels []string
		count    int
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Print messages from one or more channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conn, err := dial(ctx, opts, "subscriber", channels)
			if err != nil {
				return err
			}
			defer conn.Close()

			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()

			out := cmd.OutOrStdout()
			for n := 0; count <= 0 || n < count; n++ {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						return nil
					}
					return fmt.Errorf("receive: %w", err)
				}
				fmt.Fprintln(out, string(data))
			}
			return closeGracefully(conn)
		},
	}
	cmd.Flags().StringSliceVar(&channels, "channels", nil, "channel ids to subscribe to")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many messages (0 runs until interrupted)")
	_ = cmd.MarkFlagRequired("channels")
	return cmd
}

// dial opens the attach WebSocket for role. A rejected handshake is reported
// with the server's error message.
func dial(ctx context.Context, opts *options, role string, channels []string) (*websocket.Conn, error) {
	u, err := url.Parse(opts.baseURL() + "/attach")
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{
		"role":     {role},
		"channels": {strings.Join(channels, ",")},
	}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return nil, responseError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return conn, nil
}

func sendLines(ctx context.Context, r io.Reader, send func(string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := send(line); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return scanner.Err()
}

// closeGracefully sends a close frame so the server ends the session cleanly.
func closeGracefully(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
