package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/tastetwin/internal/api"
	"github.com/kalambet/tastetwin/internal/config"
	"github.com/kalambet/tastetwin/internal/taste"
)

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit rated titles for a streaming service",
	Long: `Submit rated titles for one streaming service. Titles are embedded and
merged into your taste profile. Submitting for the second service completes
the profile.

Examples:
  tastetwin submit --source netflix --titles "The Wire,Chernobyl" --name Alice
  tastetwin submit --source prime --file ./watched.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		titlesStr, _ := cmd.Flags().GetString("titles")
		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")

		if source == "" {
			return fmt.Errorf("--source is required")
		}
		if titlesStr == "" && file == "" {
			return fmt.Errorf("one of --titles or --file is required")
		}

		var titles []string
		if titlesStr != "" {
			for _, t := range strings.Split(titlesStr, ",") {
				if t = strings.TrimSpace(t); t != "" {
					titles = append(titles, t)
				}
			}
		} else {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("reading titles file: %w", err)
			}
			defer f.Close()
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				if line := strings.TrimSpace(scanner.Text()); line != "" {
					titles = append(titles, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading titles file: %w", err)
			}
		}
		if len(titles) == 0 {
			return fmt.Errorf("no titles to submit")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"titles":      titles,
			"serviceType": source,
		}
		if name != "" {
			req["displayName"] = name
		}

		resp, err := client.post(cmd.Context(), "/api/data", req)
		if err != nil {
			return err
		}

		var result struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("%s (%d titles, source %s)", result.Message, len(titles), source)
		return nil
	},
}

// --- similar ---

var similarCmd = &cobra.Command{
	Use:   "similar <user-id> [k]",
	Short: "Find the top K users with the most similar taste",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid := args[0]
		k := 5
		if len(args) == 2 {
			var err error
			if k, err = strconv.Atoi(args[1]); err != nil || k < 1 {
				return fmt.Errorf("k must be a positive integer, got %q", args[1])
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/similar-users/%s/%d", uid, k))
		if err != nil {
			return err
		}

		var result struct {
			Message string `json:"message"`
			Users   []struct {
				UserID      string  `json:"userId"`
				DisplayName string  `json:"displayName"`
				Similarity  float32 `json:"similarity"`
			} `json:"users"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStep("%s", result.Message)
		for i, u := range result.Users {
			label := u.DisplayName
			if label == "" {
				label = u.UserID
			}
			printStatus(fmt.Sprintf("%d. %s", i+1, label), "%.4f", u.Similarity)
		}
		return nil
	},
}

// --- compare ---

var compareCmd = &cobra.Command{
	Use:   "compare <user-id> <user-id>",
	Short: "Compute the cosine similarity between two users",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/similarity/%s/%s", args[0], args[1]))
		if err != nil {
			return err
		}

		var result struct {
			Similarity float32 `json:"similarity"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%.4f\n", result.Similarity)
		return nil
	},
}

// --- submissions ---

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "List your recent submissions as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/submissions?limit=%d", limit))
		if err != nil {
			return err
		}

		var subs any
		if err := decodeJSON(resp, &subs); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(subs)
	},
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a signed bearer token for a user",
	Long: `Mint an HS256 bearer token signed with the configured JWT secret.
Intended for local development and smoke tests; production clients obtain
tokens from the identity provider.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		token, err := api.SignIdentity([]byte(cfg.Auth.JWTSecret), taste.Identity{ID: args[0], Email: email}, ttl)
		if err != nil {
			return fmt.Errorf("signing token: %w", err)
		}

		fmt.Println(token)
		return nil
	},
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
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
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

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List valid configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ValidKeys() {
			fmt.Println(k)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().String("source", "", "streaming service the titles come from")
	submitCmd.Flags().String("titles", "", "comma-separated rated titles")
	submitCmd.Flags().String("file", "", "file with one title per line")
	submitCmd.Flags().String("name", "", "display name for the profile")

	submissionsCmd.Flags().Int("limit", 20, "maximum number of submissions")

	tokenCmd.Flags().String("email", "", "email claim for the token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	for _, c := range []*cobra.Command{submitCmd, similarCmd, compareCmd, submissionsCmd} {
		c.Flags().StringVar(&authToken, "token", "", "bearer token (defaults to TASTETWIN_TOKEN)")
	}

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
