package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/engram/internal/config"
)

// cliUser returns the session owner for client commands.
func cliUser(cmd *cobra.Command) string {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		user = "local"
	}
	return user
}

// --- capture ---

var captureCmd = &cobra.Command{
	Use:   "capture <source>",
	Short: "Capture content and start a conversation about it",
	Long: `Capture content and start a conversation about it.

The source can be a URL (articles, YouTube videos), a local PDF path,
or raw text. A prior unsaved session is replaced.

Examples:
  engram capture https://example.com/article
  engram capture https://www.youtube.com/watch?v=abc123
  engram capture ./paper.pdf --instruction "focus on the methodology"
  engram capture "an idea I just had about spaced repetition"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instruction, _ := cmd.Flags().GetString("instruction")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("capturing...")
		resp, err := client.post(cmd.Context(), "/capture", map[string]string{
			"user_id":     cliUser(cmd),
			"source":      args[0],
			"instruction": instruction,
		})
		if err != nil {
			return err
		}

		var result struct {
			Title           string `json:"title"`
			SourceKind      string `json:"source_kind"`
			Summary         string `json:"summary"`
			ReplacedSession bool   `json:"replaced_session"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.ReplacedSession {
			printWarning("previous unsaved session was replaced")
		}
		printSuccess("Captured %s: %s", result.SourceKind, result.Title)
		fmt.Println()
		fmt.Println(result.Summary)
		return nil
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the captured content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ask", map[string]string{
			"user_id":  cliUser(cmd),
			"question": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var result struct {
			Answer string `json:"answer"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		return nil
	},
}

// --- save ---

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current session into the vault",
	Long: `Save the current session into the vault.

With --project the note is filed under that project. With --area it is
filed under that knowledge area, which must carry an open output
commitment (state a new one with --commitment). With neither, the note
lands in the inbox and expires if never categorized.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		project, _ := cmd.Flags().GetString("project")
		area, _ := cmd.Flags().GetString("area")
		commitment, _ := cmd.Flags().GetString("commitment")

		if project != "" && area != "" {
			return fmt.Errorf("--project and --area are mutually exclusive")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/save", map[string]string{
			"user_id":    cliUser(cmd),
			"title":      title,
			"project":    project,
			"area":       area,
			"commitment": commitment,
		})
		if err != nil {
			return err
		}

		var item struct {
			Title     string     `json:"title"`
			Category  string     `json:"category"`
			Path      string     `json:"path"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		if err := decodeJSON(resp, &item); err != nil {
			return err
		}

		printSuccess("Saved %q to %s", item.Title, item.Path)
		if item.ExpiresAt != nil {
			printWarning("uncategorized: expires %s unless filed into a project or area",
				item.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

// --- clear / session ---

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the current session without saving",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/session?user_id="+url.QueryEscape(cliUser(cmd)))
		if err != nil {
			return err
		}

		var result struct {
			Cleared bool `json:"cleared"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Cleared {
			printSuccess("Session discarded")
		} else {
			printStatus("Session", "none active")
		}
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/session?user_id="+url.QueryEscape(cliUser(cmd)))
		if err != nil {
			return err
		}

		var st struct {
			Title      string `json:"title"`
			SourceKind string `json:"source_kind"`
			SourceRef  string `json:"source_ref"`
			Summary    string `json:"summary"`
			QATurns    int    `json:"qa_turns"`
		}
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}

		printStatus("Title", "%s", st.Title)
		printStatus("Source", "%s (%s)", st.SourceRef, st.SourceKind)
		printStatus("Q&A turns", "%d", st.QATurns)
		fmt.Println()
		fmt.Println(st.Summary)
		return nil
	},
}

// --- inbox / sweep ---

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List uncategorized items and their expiry deadlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/inbox")
		if err != nil {
			return err
		}

		var items []struct {
			Title     string     `json:"title"`
			Path      string     `json:"path"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			printStatus("Inbox", "empty")
			return nil
		}
		for _, item := range items {
			deadline := "no deadline"
			if item.ExpiresAt != nil {
				deadline = "expires " + item.ExpiresAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("  %s  (%s)\n", colorize(ansiBold, item.Title), deadline)
		}
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired inbox items now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/sweep", nil)
		if err != nil {
			return err
		}

		var report struct {
			Scanned int `json:"scanned"`
			Deleted int `json:"deleted"`
			Failed  int `json:"failed"`
		}
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}

		if report.Failed > 0 {
			printWarning("Swept %d of %d expired item(s); %d failed", report.Deleted, report.Scanned, report.Failed)
			return nil
		}
		printSuccess("Swept %d expired item(s)", report.Deleted)
		return nil
	},
}

// --- project ---

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/projects")
		if err != nil {
			return err
		}

		var projects []struct {
			Title      string    `json:"title"`
			Status     string    `json:"status"`
			LastUsedAt time.Time `json:"last_used_at"`
		}
		if err := decodeJSON(resp, &projects); err != nil {
			return err
		}

		if len(projects) == 0 {
			printStatus("Projects", "none")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("  %s  [%s]\n", colorize(ansiBold, p.Title), p.Status)
		}
		return nil
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects", map[string]string{"title": args[0]})
		if err != nil {
			return err
		}

		var project struct {
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &project); err != nil {
			return err
		}

		printSuccess("Created project %q", project.Title)
		return nil
	},
}

var projectDefaultCmd = &cobra.Command{
	Use:   "default <title>",
	Short: "Route uncategorized saves into this project by default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/settings/routing.default_project",
			map[string]string{"value": args[0]})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Default project set to %q", args[0])
		return nil
	},
}

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectDefaultCmd)
}

// --- area ---

var areaCmd = &cobra.Command{
	Use:   "area",
	Short: "Manage knowledge areas and their output commitments",
}

var areaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/areas")
		if err != nil {
			return err
		}

		var areas []struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Status string `json:"status"`
		}
		if err := decodeJSON(resp, &areas); err != nil {
			return err
		}

		if len(areas) == 0 {
			printStatus("Areas", "none")
			return nil
		}
		for _, a := range areas {
			fmt.Printf("  %s  [%s]  %s\n", colorize(ansiBold, a.Title), a.Status, a.ID)
		}
		return nil
	},
}

var areaAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a knowledge area",
	Long: `Create a knowledge area.

An area cannot receive saves until it has an open output commitment;
state one at creation with --commitment.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		commitment, _ := cmd.Flags().GetString("commitment")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/areas", map[string]string{
			"title":      args[0],
			"commitment": commitment,
		})
		if err != nil {
			return err
		}

		var area struct {
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &area); err != nil {
			return err
		}

		printSuccess("Created area %q", area.Title)
		if commitment == "" {
			printWarning("area has no output commitment yet; it cannot receive saves until one is stated")
		}
		return nil
	},
}

var areaCommitmentsCmd = &cobra.Command{
	Use:   "commitments <area-id>",
	Short: "List an area's output commitments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/areas/"+url.PathEscape(args[0])+"/commitments")
		if err != nil {
			return err
		}

		var commitments []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
			Fulfilled   bool   `json:"fulfilled"`
		}
		if err := decodeJSON(resp, &commitments); err != nil {
			return err
		}

		if len(commitments) == 0 {
			printStatus("Commitments", "none")
			return nil
		}
		for _, c := range commitments {
			mark := colorize(ansiYellow, "open")
			if c.Fulfilled {
				mark = colorize(ansiGreen, "done")
			}
			fmt.Printf("  [%s] %s  %s\n", mark, c.Description, c.ID)
		}
		return nil
	},
}

func init() {
	areaCmd.AddCommand(areaListCmd)
	areaCmd.AddCommand(areaAddCmd)
	areaCmd.AddCommand(areaCommitmentsCmd)
}

// --- fulfill ---

var fulfillCmd = &cobra.Command{
	Use:   "fulfill <commitment-id>",
	Short: "Mark an output commitment as fulfilled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/commitments/"+url.PathEscape(args[0])+"/fulfill", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Commitment fulfilled")
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(ansiBold, k.Key), k.Value)
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
	Short: "List settable configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ValidKeys() {
			fmt.Println(k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)

	captureCmd.Flags().String("instruction", "", "direct the summary, e.g. \"focus on the methodology\"")
	saveCmd.Flags().String("title", "", "title override for the saved note")
	saveCmd.Flags().String("project", "", "destination project title")
	saveCmd.Flags().String("area", "", "destination area title")
	saveCmd.Flags().String("commitment", "", "new output commitment for the area")
	areaAddCmd.Flags().String("commitment", "", "initial output commitment for the area")

	for _, c := range []*cobra.Command{captureCmd, askCmd, saveCmd, clearCmd, sessionCmd} {
		c.Flags().String("user", "local", "session owner")
	}
}
