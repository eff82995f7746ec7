package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/channelcast/backend/internal/models"
)

func newCreateCmd(opts *options) *cobra.Command {
	var capacity int

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a channel and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"name": {args[0]}}
			if capacity != 0 {
				q.Set("capacity", strconv.Itoa(capacity))
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				opts.baseURL()+"/createChannel?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			body, err := doRequest(req, http.StatusCreated)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&capacity, "capacity", "c", 0, "ring capacity (server default when 0)")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, opts.baseURL()+"/getChannels", nil)
			if err != nil {
				return err
			}
			body, err := doRequest(req, http.StatusOK)
			if err != nil {
				return err
			}

			if asJSON {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}

			var list models.ChannelListResponse
			if err := json.Unmarshal(body, &list); err != nil {
				return fmt.Errorf("decode channel list: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCAPACITY\tSUBSCRIBERS\tPUBLISHED")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", c.ID, c.Name, c.Capacity, c.Subscribers, c.Published)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

// doRequest sends req and returns the body when the response has the
// expected status. Error bodies are decoded into their message.
func doRequest(req *http.Request, want int) ([]byte, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

func responseError(status int, body []byte) error {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", status, e.Error)
	}
	return fmt.Errorf("server returned %d", status)
}
