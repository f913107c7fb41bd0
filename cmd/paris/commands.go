package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/paris/internal/config"
	"github.com/kalambet/paris/internal/profile"
)

// --- chat ---

type chatReply struct {
	Response   string           `json:"response"`
	Trajectory profile.FieldSet `json:"trajectory"`
	Language   string           `json:"language"`
	SessionID  string           `json:"session_id"`
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message to Paris",
	Long: `Send one message to Paris and print the reply.

Examples:
  paris chat --role pro "Bonjour, je suis développeuse backend"
  paris chat --role researcher --session lab-42 "I work on robotics"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		reply, err := sendChat(cmd.Context(), client, role, sessionID, strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, reply.Response)
		printFields(reply.Trajectory)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("role", "", "user role: professional (pro) or researcher (chercheur)")
	chatCmd.Flags().String("session", "", "conversation identifier")
	chatCmd.MarkFlagRequired("role")
}

func sendChat(ctx context.Context, c *apiClient, role, sessionID, message string) (chatReply, error) {
	req := map[string]string{"role": role, "message": message}
	if sessionID != "" {
		req["session_id"] = sessionID
	}
	resp, err := c.post(ctx, "/chat", req)
	if err != nil {
		return chatReply{}, err
	}
	var reply chatReply
	if err := decodeJSON(resp, &reply); err != nil {
		return chatReply{}, err
	}
	return reply, nil
}

func printFields(fields profile.FieldSet) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printStatus(k, "%s", fields[k])
	}
}

// --- greet ---

var greetCmd = &cobra.Command{
	Use:   "greet",
	Short: "Print a welcome message",
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		msg, err := fetchGreeting(cmd.Context(), client, lang)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, msg)
		return nil
	},
}

func init() {
	greetCmd.Flags().String("lang", "fr", "language: fr or en")
}

func fetchGreeting(ctx context.Context, c *apiClient, lang string) (string, error) {
	resp, err := c.get(ctx, "/greetings?lang="+url.QueryEscape(lang))
	if err != nil {
		return "", err
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return "", err
	}
	return body.Message, nil
}

// --- session ---

type sessionItem struct {
	SessionID   string `json:"session_id"`
	Role        string `json:"role"`
	Language    string `json:"language"`
	FieldsKnown int    `json:"fields_known"`
	FieldsTotal int    `json:"fields_total"`
	Turns       int    `json:"turns"`
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect stored sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		items, err := listSessions(cmd.Context(), client)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			printWarning("No sessions stored")
			return nil
		}
		for _, it := range items {
			fmt.Fprintf(os.Stdout, "%-13s %-20s %s  %d/%d fields  %d turns\n",
				it.Role, it.SessionID, it.Language, it.FieldsKnown, it.FieldsTotal, it.Turns)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <role>",
	Short: "Show one session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		view, err := getSession(cmd.Context(), client, args[0], sessionID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(view)
	},
}

var sessionExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored session as JSON or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		n, err := exportSessions(cmd.Context(), client, w, format)
		if err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d sessions to %s", n, output)
		}
		return nil
	},
}

func init() {
	sessionShowCmd.Flags().String("session", "", "conversation identifier")
	sessionExportCmd.Flags().String("format", "json", "output format: json or yaml")
	sessionExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionExportCmd)
}

func listSessions(ctx context.Context, c *apiClient) ([]sessionItem, error) {
	resp, err := c.get(ctx, "/sessions")
	if err != nil {
		return nil, err
	}
	var body struct {
		Sessions []sessionItem `json:"sessions"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}

func getSession(ctx context.Context, c *apiClient, role, sessionID string) (map[string]any, error) {
	path := "/sessions/" + url.PathEscape(role)
	if sessionID != "" {
		path += "?session_id=" + url.QueryEscape(sessionID)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var view map[string]any
	if err := decodeJSON(resp, &view); err != nil {
		return nil, err
	}
	return view, nil
}

// exportSessions writes every stored session to w and returns how many were
// written.
func exportSessions(ctx context.Context, c *apiClient, w io.Writer, format string) (int, error) {
	format = strings.ToLower(format)
	if format != "json" && format != "yaml" {
		return 0, fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}

	items, err := listSessions(ctx, c)
	if err != nil {
		return 0, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, it := range items {
		v, err := getSession(ctx, c, it.Role, it.SessionID)
		if err != nil {
			return 0, fmt.Errorf("fetching %s/%s: %w", it.Role, it.SessionID, err)
		}
		views = append(views, v)
	}

	doc := map[string]any{"sessions": views}
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("encoding yaml: %w", err)
		}
		return len(views), enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return len(views), enc.Encode(doc)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
